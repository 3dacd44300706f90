package plugins

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MTLaboratory/MTSFV/plugin/manager/types"
)

const (
	locationTimeout = 30 * time.Second
	healthTimeout   = 5 * time.Second
	pollInterval    = 100 * time.Millisecond
)

// WaitForPlugin scrapes the plugin's listen location from its stdout, sets
// up the HTTP client for the negotiated transport and waits for the plugin
// to answer health checks. It returns the configured client and the
// location.
func WaitForPlugin(ctx context.Context, plugin *types.Plugin) (*http.Client, string, error) {
	location, err := getPluginLocation(ctx, plugin)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get plugin location: %w", err)
	}

	slog.DebugContext(ctx, "got plugin location", "id", plugin.ID, "location", location)

	client, err := connect(plugin.ID, location, plugin.Config.Type)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to plugin %s: %w", plugin.ID, err)
	}

	base := "http://unix"
	if plugin.Config.Type == types.TCP {
		// for tcp the location already includes scheme, host and port
		base = location
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/healthz", nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build health check for plugin %s: %w", plugin.ID, err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.After(healthTimeout)
	for {
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			return client, location, nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return nil, "", fmt.Errorf("timed out waiting for plugin %s", plugin.ID)
		case <-ctx.Done():
			return nil, "", fmt.Errorf("context was cancelled waiting for plugin %s: %w", plugin.ID, ctx.Err())
		}
	}
}

func getPluginLocation(ctx context.Context, plugin *types.Plugin) (string, error) {
	if plugin.Stdout == nil {
		return "", errors.New("communication channel with the plugin is not set up; stdout is nil")
	}

	location := make(chan string, 1)
	errChan := make(chan error, 1)

	timeoutCtx, cancel := context.WithTimeout(ctx, locationTimeout)
	defer cancel()

	scanner := bufio.NewScanner(plugin.Stdout)
	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "http://"):
				location <- line
				return
			case strings.HasPrefix(line, "http+unix://"):
				location <- strings.TrimPrefix(line, "http+unix://")
				return
			default:
				slog.DebugContext(ctx, "skipping line with unknown scheme", "line", line)
			}
		}
		if err := scanner.Err(); err != nil {
			errChan <- fmt.Errorf("error reading plugin output: %w", err)
		}
	}()

	select {
	case loc := <-location:
		return loc, nil
	case err := <-errChan:
		return "", err
	case <-timeoutCtx.Done():
		return "", errors.New("timed out waiting for plugin to announce its location")
	}
}

// connect creates a client dialing the plugin's transport, either a unix
// socket or a local tcp port.
func connect(id, location string, typ types.ConnectionType) (*http.Client, error) {
	var network string
	switch typ {
	case types.Socket:
		network = "unix"
	case types.TCP:
		network = "tcp"
		location = strings.TrimPrefix(location, "http://")
	default:
		return nil, fmt.Errorf("invalid connection type: %s", typ)
	}

	dialer := net.Dialer{
		Timeout: 30 * time.Second,
	}

	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        1000,
			MaxIdleConnsPerHost: 1000,
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				conn, err := dialer.DialContext(ctx, network, location)
				if err != nil {
					return nil, fmt.Errorf("failed to connect to plugin %s: %w", id, err)
				}
				return conn, nil
			},
		},
	}, nil
}
