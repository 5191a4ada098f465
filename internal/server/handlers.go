package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slipwayhq/slipway/internal"
	"github.com/slipwayhq/slipway/internal/build"
	"github.com/slipwayhq/slipway/internal/cache"
	"github.com/slipwayhq/slipway/internal/launch"
	"github.com/slipwayhq/slipway/internal/manifest"
	"github.com/slipwayhq/slipway/internal/protocol"
	"github.com/slipwayhq/slipway/internal/runtime"
)

// Handles a build command.
//
// Resolves the build context, compiles the selected profile into a plan,
// and executes it, streaming stage events back to the client.
func (s *Server) handleBuild(ctx context.Context, sess *session, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	recipe, profile, dir, cleanup, err := s.prepare(ctx, req.Context, req.Profile)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}
	defer cleanup()

	result, err := s.build(ctx, sess, recipe, profile, dir, req.Output, req.NoCache)
	s.recordAttempt(recipe.Service.Name, profile, "build", err)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	sess.send(protocol.CmdOK, &protocol.BuildResult{Output: result.Output, Cached: result.Cached})
}

// Handles an up command.
//
// Builds the selected profile unless a prebuilt archive is supplied, then
// launches it and supervises it to exit. The connection stays open for the
// service's lifetime: stage events, readiness, and service output stream
// to the client, and the terminal response carries the exit code.
func (s *Server) handleUp(ctx context.Context, sess *session, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.UpRequest](payload)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	recipe, profile, dir, cleanup, err := s.prepare(ctx, req.Context, req.Profile)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}
	defer cleanup()

	archive := req.Image
	if archive == "" {
		result, err := s.build(ctx, sess, recipe, profile, dir, "", false)
		s.recordAttempt(recipe.Service.Name, profile, "build", err)
		if err != nil {
			sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
			return
		}
		archive = filepath.Join(result.Output, runtime.ExportFilename)
	}

	// The application's own .env at the context root is picked up by
	// default, matching what the service would load were it run in place.
	envFile := req.EnvFile
	switch {
	case envFile == "":
		if candidate := filepath.Join(dir, ".env"); fileExists(candidate) {
			envFile = candidate
		}
	case !filepath.IsAbs(envFile):
		envFile = filepath.Join(dir, envFile)
	}
	env, err := launch.MergeEnv(nil, envFile, req.Env)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	name := recipe.Service.Name
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.registerService(name, cancel); err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}
	defer s.unregisterService(name)

	logs := &lineWriter{emit: func(line string) { sess.event("log", line) }}
	defer logs.Flush()

	code, err := launch.Run(runCtx, launch.Containerd(s.runtime), launch.Options{
		Archive:      archive,
		Tag:          fmt.Sprintf("%s:%s", name, profile),
		Service:      name,
		Port:         recipe.Service.Port,
		Env:          env,
		StopSignal:   recipe.Service.StopSignal,
		NoWait:       req.NoWait,
		ProbeTimeout: time.Duration(req.Timeout) * time.Second,
		Stdout:       logs,
		Stderr:       logs,
		Events:       sess.event,
	})
	s.recordAttempt(name, profile, "launch", err)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	sess.send(protocol.CmdOK, &protocol.UpResult{ExitCode: code})
}

// Handles a down command.
//
// A service launched by this daemon is stopped through its supervisor,
// which delivers the configured stop signal. A container left over from an
// earlier daemon is stopped directly. With purge set, the service's built
// images are removed as well.
func (s *Server) handleDown(ctx context.Context, sess *session, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.DownRequest](payload)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	cancel, supervised := s.services[req.Service]
	s.mu.Unlock()

	if supervised {
		cancel()
	} else {
		ctr := s.runtime.Container(req.Service)
		state, err := ctr.Status(ctx)
		if err != nil {
			sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
			return
		}
		if state == runtime.StateNotCreated && !req.Purge {
			sess.send(protocol.CmdError, &protocol.ErrorResult{
				Message: fmt.Sprintf("no container for service %q", req.Service),
			})
			return
		}
		if state == runtime.StateRunning {
			if err := ctr.Stop(ctx); err != nil {
				sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
				return
			}
		}
	}

	if req.Purge {
		for _, profile := range []manifest.ProfileName{manifest.ProfileFull, manifest.ProfileSlim} {
			tag := fmt.Sprintf("%s:%s", req.Service, profile)
			if err := s.runtime.DestroyImage(ctx, tag); err != nil {
				sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
				return
			}
		}
	}
	sess.send(protocol.CmdOK, nil)
}

// Handles a probe command.
func (s *Server) handleProbe(ctx context.Context, sess *session, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.ProbeRequest](payload)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	status, err := launch.Probe(ctx, req.Port, time.Duration(req.Timeout)*time.Second)
	if err != nil {
		sess.send(protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	sess.send(protocol.CmdOK, &protocol.ProbeResult{Status: status})
}

// Handles a status command.
func (s *Server) handleStatus(sess *session) {
	s.mu.Lock()
	builds := s.builds
	s.mu.Unlock()

	uptime := time.Since(s.startedAt).Truncate(time.Second)

	sess.send(protocol.CmdOK, &protocol.StatusResult{
		Running:  true,
		Version:  internal.VersionString(),
		Pid:      os.Getpid(),
		Uptime:   uptime.String(),
		Builds:   builds,
		Attempts: s.attempts.Recent(recentAttempts),
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(sess *session) {
	sess.send(protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}

// Resolves a build context and the profile to use for it.
//
// The profile argument, when present, moves the service's selection, which
// enforces the one-way full-to-slim transition. An empty argument uses the
// current selection.
func (s *Server) prepare(ctx context.Context, contextArg, profileArg string) (*manifest.Recipe, manifest.ProfileName, string, func(), error) {
	dir, cleanup, err := build.ResolveContext(ctx, contextArg)
	if err != nil {
		return nil, "", "", nil, err
	}

	recipe, err := manifest.Discover(dir)
	if err != nil {
		cleanup()
		return nil, "", "", nil, err
	}

	profile, err := s.selections.resolve(recipe.Service.Name, profileArg)
	if err != nil {
		cleanup()
		return nil, "", "", nil, err
	}
	if _, ok := recipe.Profiles[string(profile)]; !ok {
		cleanup()
		return nil, "", "", nil, fmt.Errorf("%w: recipe has no %q profile", ErrServer, profile)
	}

	return recipe, profile, dir, cleanup, nil
}

// Compiles and executes a plan, streaming stage events to the session.
func (s *Server) build(ctx context.Context, sess *session, recipe *manifest.Recipe, profile manifest.ProfileName, dir, output string, noCache bool) (*build.Result, error) {
	plan, err := recipe.Plan(profile)
	if err != nil {
		return nil, err
	}

	if output == "" {
		output = filepath.Join(s.stateDir, "images", recipe.Service.Name, string(profile))
	}

	var store *cache.Store
	if !noCache {
		store = cache.NewStore("")
	}

	result, err := build.Run(ctx, build.Containerd(s.runtime), build.Options{
		Plan:    plan,
		Context: dir,
		Output:  output,
		Cache:   store,
		Events:  sess.event,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	return result, nil
}

// Registers a launched service's stop function. A service name can only be
// supervised once at a time.
func (s *Server) registerService(name string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.services[name]; running {
		return fmt.Errorf("%w: service %s is already running", ErrServer, name)
	}
	s.services[name] = cancel
	return nil
}

func (s *Server) unregisterService(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, name)
}

// Appends an attempt record for a finished phase.
func (s *Server) recordAttempt(service string, profile manifest.ProfileName, phase string, err error) {
	attempt := protocol.Attempt{
		Service:    service,
		Profile:    string(profile),
		Phase:      phase,
		Outcome:    "succeeded",
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		attempt.Outcome = "failed"
		attempt.Detail = err.Error()
	}
	s.attempts.Record(attempt)
}

// Splits a service's output stream into per-line log events. Safe for use
// as both stdout and stderr of the same task.
type lineWriter struct {
	emit func(line string)
	mu   sync.Mutex
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line: put it back and wait for the rest.
			w.buf.WriteString(line)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

// Emits any trailing output that never got its newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

// Reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
