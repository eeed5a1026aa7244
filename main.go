package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/eiannone/keyboard"
	"github.com/faiface/beep"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/dimfu/clack/v2/internal/advisory"
	"github.com/dimfu/clack/v2/internal/feedback"
	"github.com/dimfu/clack/v2/internal/logx"
	"github.com/dimfu/clack/v2/internal/metronome"
	"github.com/dimfu/clack/v2/internal/sound"
)

type options struct {
	tempo      int
	timesig    string
	sound      string
	config     string
	preset     string
	soundsDir  string
	logLevel   string
	logFile    string
	logConsole bool
	headless   bool
	paused     bool
	noWatch    bool
	dumpConfig bool

	flags *pflag.FlagSet
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("clack", pflag.ContinueOnError)
	fs.IntVarP(&o.tempo, "tempo", "t", metronome.DefaultTempo, "the speed at which a passage of this metronome should be played")
	fs.StringVarP(&o.timesig, "timesig", "s", metronome.DefaultSignature, "indicate how many beats are in each measure")
	fs.StringVarP(&o.sound, "sound", "p", DEFAULT_PROFILE, "sound profile used for the beats")
	fs.StringVarP(&o.config, "config", "c", "", "config file (default ~/"+DEFAULT_CONFIG_NAME+")")
	fs.StringVar(&o.preset, "preset", "", "load tempo and time signature from a preset in the config file")
	fs.StringVar(&o.soundsDir, "sounds-dir", "", "directory relative sound locations are resolved against")
	fs.StringVar(&o.logLevel, "log-level", "", "trace, debug, info, warn or error")
	fs.StringVar(&o.logFile, "log-file", "", "append JSON logs to this file")
	fs.BoolVar(&o.logConsole, "log-console", false, "log to stderr even in interactive mode")
	fs.BoolVar(&o.headless, "headless", false, "log beats instead of drawing them")
	fs.BoolVar(&o.paused, "paused", false, "wait for space before the first beat")
	fs.BoolVar(&o.noWatch, "no-watch", false, "do not reload the config file when it changes")
	fs.BoolVar(&o.dumpConfig, "dump-config", false, "print the resolved config and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.flags = fs
	return o, nil
}

// resolveConfig loads the config file, then applies the preset and explicit
// flags on top of it.
func resolveConfig(o *options) (*Config, *ConfigManager, error) {
	cm := NewConfigManager(o.config, o.flags.Changed("config"))
	cfg, err := cm.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if o.preset != "" {
		if err := cfg.ApplyPreset(o.preset); err != nil {
			return nil, nil, err
		}
	}
	if o.flags.Changed("tempo") {
		cfg.Tempo = o.tempo
	}
	if o.flags.Changed("timesig") {
		cfg.Timesig = o.timesig
	}
	if o.flags.Changed("sound") {
		cfg.Sound = o.sound
	}
	if o.flags.Changed("sounds-dir") {
		cfg.SoundsDir = o.soundsDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if o.logConsole {
		cfg.Log.Console = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cm, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "clack: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, cm, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if opts.dumpConfig {
		spew.Fdump(os.Stdout, cfg)
		return nil
	}

	interactive := !opts.headless &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	logSvc, log := logx.New(cfg.LogConfig(interactive))
	defer logSvc.Close()
	cm.SetLogger(log.With(logx.String("component", "config")))

	bus := advisory.NewBus(
		advisory.WithLogger(log.With(logx.String("component", "advisory"))),
		advisory.WithThrottle(advisory.AudioResumeFailure, RESUME_ADVISORY_EVERY),
	)

	bufferDur, _ := cfg.BufferDuration()
	idle, _ := cfg.IdleRelease()
	rate := beep.SampleRate(cfg.Audio.SampleRate)

	out := sound.NewOutput(sound.Speaker, rate, bufferDur, bus)
	out.SetLogger(log.With(logx.String("component", "output")))

	bank := sound.NewBank()
	loader := sound.NewLoader(bank, sound.LocalOrHTTP{
		Root:   cfg.SoundsDir,
		Client: &http.Client{Timeout: 30 * time.Second},
	}, rate, bus)
	loader.SetLogger(log.With(logx.String("component", "loader")))
	loader.SetSources(cfg.Sources())

	var display feedback.Display
	if interactive {
		display = feedback.NewTerminal(os.Stdout, nil)
	} else {
		display = feedback.NewLog(log.With(logx.String("component", "beat")))
	}

	ctrl := NewController(Deps{
		Output:      out,
		Bank:        bank,
		Loader:      loader,
		Display:     display,
		Notify:      bus,
		Log:         log,
		Tempo:       cfg.Tempo,
		Signature:   cfg.Timesig,
		Profile:     cfg.Sound,
		Profiles:    cfg.Profiles(),
		IdleRelease: idle,
	})
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	advisories, unsub := bus.Subscribe(16)
	defer unsub()
	go func() {
		for a := range advisories {
			display.Notice(a.Message)
		}
	}()

	if !opts.noWatch {
		go func() {
			err := cm.Watch(ctx, func(updated *Config) {
				logSvc.SetLevel(updated.Log.Level)
				ctrl.ApplyConfig(updated)
			})
			if err != nil {
				log.Warn("config watch disabled", logx.Err(err))
			}
		}()
	}

	log.Info("clack started",
		logx.Int("bpm", cfg.Tempo),
		logx.String("signature", cfg.Timesig),
		logx.String("sound", cfg.Sound),
		logx.Bool("interactive", interactive),
	)
	ctrl.Preload()

	if !interactive {
		ctrl.Start()
		<-ctx.Done()
		return nil
	}

	ClearTerminal()
	fmt.Println(KEY_HELP)
	if !opts.paused {
		ctrl.Start()
	}
	return runKeys(ctx, newKeyHandler(ctrl, display))
}

func runKeys(ctx context.Context, h *keyHandler) error {
	keys, err := keyboard.GetKeys(10)
	if err != nil {
		return errors.Wrap(err, "open keyboard")
	}
	defer func() { _ = keyboard.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return errors.Wrap(ev.Err, "read key")
			}
			if h.handle(ev) {
				return nil
			}
		}
	}
}
