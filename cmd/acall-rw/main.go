// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command acall-rw writes a file through an acall ring, closes it,
// reopens it and reads every block back, checking each against the
// checksum recorded when it was written.
//
// Settings come from ACALL_* environment variables, optionally loaded
// from a .env file. See internal/config.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"time"

	"code.hybscloud.com/acall"
	"code.hybscloud.com/acall/internal/config"
	"code.hybscloud.com/acall/internal/engine"
	"code.hybscloud.com/acall/internal/rw"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
)

// Report is printed when the run ends.
type Report struct {
	Path       string        `json:"path"`
	Blocks     int           `json:"blocks"`
	BlockSize  int           `json:"block_size"`
	Bytes      int           `json:"bytes"`
	SQEntries  uint32        `json:"sq_entries"`
	CQEntries  uint32        `json:"cq_entries"`
	Window     int           `json:"window"`
	Workers    int           `json:"workers"`
	Write      time.Duration `json:"write_ns"`
	Read       time.Duration `json:"read_ns"`
	WriteMBps  float64       `json:"write_mbps"`
	ReadMBps   float64       `json:"read_mbps"`
	Submitted  uint64        `json:"submitted"`
	Completed  uint64        `json:"completed"`
	MaxPending uint32        `json:"max_pending"`
	IdlePasses uint64        `json:"idle_passes"`
	Digest     string        `json:"digest"`
	Verified   bool          `json:"verified"`
	Error      string        `json:"error,omitempty"`
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	log.SetOutput(os.Stderr)

	rep, err := run(cfg, log)
	if err != nil {
		rep.Error = err.Error()
		log.WithError(err).Error("read-after-write failed")
	}
	if perr := printReport(cfg, rep); perr != nil {
		log.WithError(perr).Error("failed to print report")
	}
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) (*Report, error) {
	rep := &Report{
		Path:      cfg.Path,
		BlockSize: cfg.BlockSize,
		Bytes:     cfg.TotalSize,
		Workers:   cfg.Workers,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	eng := engine.New(engine.Config{Workers: cfg.Workers, Logger: log})
	defer func() {
		if err := eng.Close(); err != nil {
			log.WithError(err).Warn("engine close")
		}
	}()

	w, err := rw.New(rw.Config{BlockSize: cfg.BlockSize, TotalSize: cfg.TotalSize, Seed: cfg.Seed})
	if err != nil {
		return rep, err
	}
	rep.Blocks = w.Blocks()
	rep.Digest = hex.EncodeToString(digest(w))

	f := newFiles(eng, cfg)
	ring, err := acall.New(cfg.SQEntries).CompletionEntries(cfg.CQEntries).Window(cfg.Window).Setup(eng)
	if err != nil {
		closeWorkload(w, log)
		return rep, err
	}
	p := ring.Params()
	rep.SQEntries, rep.CQEntries, rep.Window = p.SQEntries, p.CQEntries, ring.Window()
	log.WithFields(logrus.Fields{
		"sq":     p.SQEntries,
		"cq":     p.CQEntries,
		"window": ring.Window(),
		"blocks": w.Blocks(),
		"bs":     cfg.BlockSize,
	}).Info("ring ready")

	d := acall.NewDriver(ring)
	defer func() {
		fillStats(rep, d.Stats())
		// The engine may still address in-flight buffers until it stops.
		if d.Inflight() == 0 {
			closeWorkload(w, log)
		}
	}()

	fd, err := f.open(false)
	if err != nil {
		return rep, err
	}
	start := time.Now()
	if err := d.Run(ctx, w.WriteOps(fd), nil); err != nil {
		return rep, fmt.Errorf("write phase: %w", err)
	}
	rep.Write = time.Since(start)
	rep.WriteMBps = mbps(cfg.TotalSize, rep.Write)
	log.WithField("elapsed", rep.Write).Info("write phase done")

	if err := d.Run(ctx, []acall.Op{{Opcode: acall.OpClose, FD: fd}}, nil); err != nil {
		return rep, fmt.Errorf("close: %w", err)
	}

	if fd, err = f.open(true); err != nil {
		return rep, err
	}
	start = time.Now()
	if err := d.Run(ctx, w.ReadOps(fd), w.Verify); err != nil {
		return rep, fmt.Errorf("read phase: %w", err)
	}
	rep.Read = time.Since(start)
	rep.ReadMBps = mbps(cfg.TotalSize, rep.Read)
	rep.Verified = true
	log.WithField("elapsed", rep.Read).Info("read phase done")
	return rep, nil
}

// files reopens the target between phases: a path on disk, or the same
// in-memory file registered again.
type files struct {
	eng  *engine.Engine
	path string
	mem  *engine.MemFile
}

func newFiles(eng *engine.Engine, cfg *config.Config) *files {
	f := &files{eng: eng, path: cfg.Path}
	if f.path == "" {
		f.mem = engine.NewMemFile(cfg.TotalSize)
	}
	return f
}

func (f *files) open(readOnly bool) (int32, error) {
	if f.mem != nil {
		return f.eng.Register(f.mem), nil
	}
	flag := os.O_RDWR | os.O_CREATE | os.O_TRUNC
	if readOnly {
		flag = os.O_RDONLY
	}
	fd, err := f.eng.Open(f.path, flag, 0o644)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", f.path, err)
	}
	return fd, nil
}

func digest(w *rw.Workload) []byte {
	d := w.Digest()
	return d[:]
}

func closeWorkload(w *rw.Workload, log *logrus.Logger) {
	if err := w.Close(); err != nil {
		log.WithError(err).Warn("workload close")
	}
}

func fillStats(rep *Report, st acall.Stats) {
	rep.Submitted = st.Submitted
	rep.Completed = st.Completed
	rep.MaxPending = st.MaxPending
	rep.IdlePasses = st.IdlePasses
}

func mbps(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / (1 << 20) / d.Seconds()
}

func printReport(cfg *config.Config, rep *Report) error {
	if cfg.Report == config.ReportText {
		_, err := fmt.Printf("blocks=%d bs=%d sq=%d cq=%d window=%d write=%s (%.1f MiB/s) read=%s (%.1f MiB/s) verified=%t digest=%s\n",
			rep.Blocks, rep.BlockSize, rep.SQEntries, rep.CQEntries, rep.Window,
			rep.Write, rep.WriteMBps, rep.Read, rep.ReadMBps, rep.Verified, rep.Digest)
		return err
	}
	b, err := sonnet.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(b))
	return err
}
