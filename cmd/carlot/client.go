package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"carlot/internal/api"
	"carlot/internal/config"
)

const (
	pingTimeout        = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverStopTimeout  = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
)

// withClient runs fn against the configured server, starting a local one
// for the duration of fn when nothing answers.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err := client.Ping(ctx)
	cancel()
	if err == nil {
		return fn(client)
	}

	local, err := startLocalServer(cfg)
	if err != nil {
		return err
	}
	defer local.stop()

	if err := local.waitReady(client); err != nil {
		return err
	}
	return fn(client)
}

// localServer is a child "carlot srv" process.
type localServer struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate carlot binary: %w", err)
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(),
		"CARLOT_DB="+cfg.DBPath,
		"CARLOT_API_URL="+cfg.APIURL,
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start local server: %w", err)
	}

	s := &localServer{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

func (s *localServer) waitReady(client *api.Client) error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	deadline := time.After(serverStartTimeout)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*serverPollInterval)
		err := client.Ping(ctx)
		cancel()
		switch {
		case err == nil:
			return nil
		case !isConnRefused(err):
			// Something else owns the port.
			return err
		}

		select {
		case <-s.done:
			return errors.New("local server exited during startup")
		case <-deadline:
			return errors.New("server did not start in time")
		case <-ticker.C:
		}
	}
}

// stop interrupts the server so it shuts down cleanly, then kills it if it
// lingers.
func (s *localServer) stop() {
	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
	case <-time.After(serverStopTimeout):
		_ = s.cmd.Process.Kill()
		<-s.done
	}
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
