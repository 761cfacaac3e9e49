package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"github.com/oxygene76/reflectx/internal/types"
)

// Bridge runs the engines out of process. Each call starts Command with Args plus the
// operation name, writes the JSON request to stdin and reads one JSON envelope from
// stdout. Anything the engine prints on stderr is streamed to the run log.
type Bridge struct {
	Command string
	Args    []string
	Env     []string
	Dir     string

	logger *zap.Logger
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// NewBridge creates a bridge for the given command line
func NewBridge(command string, args []string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		Command: command,
		Args:    args,
		logger:  logger.Named("bridge"),
	}
}

// Climate runs the climate solver
func (b *Bridge) Climate(ctx context.Context, req ClimateRequest, log io.Writer) (*ClimateResult, error) {
	var res ClimateResult
	chatter, err := b.call(ctx, OpClimate, req, &res, log)
	if err != nil {
		return nil, err
	}
	if res.Converged == nil {
		converged := DetectConvergence(chatter)
		res.Converged = &converged
	}
	if res.Pressure == nil {
		res.Pressure = res.Profile["pressure"]
	}
	if res.Temperature == nil {
		res.Temperature = res.Profile["temperature"]
	}
	return &res, nil
}

// Spectrum computes a reflected-light spectrum
func (b *Bridge) Spectrum(ctx context.Context, req SpectrumRequest, log io.Writer) (*SpectrumResult, error) {
	var res SpectrumResult
	if _, err := b.call(ctx, OpSpectrum, req, &res, log); err != nil {
		return nil, err
	}
	if len(res.Wavenumber) != len(res.Albedo) || len(res.Wavenumber) != len(res.FpFs) {
		return nil, errorsmod.Wrapf(types.ErrEngine, "spectrum arrays disagree: %d wavenumbers, %d albedo, %d fpfs",
			len(res.Wavenumber), len(res.Albedo), len(res.FpFs))
	}
	return &res, nil
}

// CloudProperties computes cloud optical properties
func (b *Bridge) CloudProperties(ctx context.Context, req CloudRequest, log io.Writer) (*CloudResult, error) {
	var res CloudResult
	if _, err := b.call(ctx, OpCloudProperties, req, &res, log); err != nil {
		return nil, err
	}
	return &res, nil
}

// RecommendGas asks the cloud engine for condensate species
func (b *Bridge) RecommendGas(ctx context.Context, req RecommendRequest, log io.Writer) ([]string, error) {
	var res []string
	if _, err := b.call(ctx, OpRecommendGas, req, &res, log); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Bridge) call(ctx context.Context, op string, req, res interface{}, log io.Writer) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrEngine, "encode %s request: %s", op, err)
	}
	if log == nil {
		log = io.Discard
	}

	args := append(append([]string(nil), b.Args...), op)
	cmd := exec.CommandContext(ctx, b.Command, args...)
	cmd.Dir = b.Dir
	if len(b.Env) > 0 {
		cmd.Env = append(os.Environ(), b.Env...)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, chatter bytes.Buffer
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(log, &chatter)

	start := time.Now()
	b.logger.Debug("Calling engine", zap.String("op", op), zap.String("command", b.Command))
	runErr := cmd.Run()
	b.logger.Debug("Engine returned", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return chatter.Bytes(), errorsmod.Wrapf(ctxErr, "engine %s interrupted", op)
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "%s exited with code %d: %s",
				op, exitErr.ExitCode(), lastLine(chatter.String()))
		}
		return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "%s: %s", op, runErr)
	}

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "decode %s response: %s", op, err)
	}
	if env.Error != "" {
		return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "%s: %s", op, env.Error)
	}
	if len(env.Result) == 0 {
		return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "%s returned no result", op)
	}
	if err := json.Unmarshal(env.Result, res); err != nil {
		return chatter.Bytes(), errorsmod.Wrapf(types.ErrEngine, "decode %s result: %s", op, err)
	}
	return chatter.Bytes(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
