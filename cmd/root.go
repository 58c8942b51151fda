package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"riffloop/config"
	"riffloop/engine"
	"riffloop/logger"
	"riffloop/meter"
	"riffloop/pipeline"
	"riffloop/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	cfgFile string
	verbose bool

	flagStart   float64
	flagEnd     float64
	flagLoop    bool
	flagPause   float64
	flagCountIn float64
	flagSpeed   float64
	flagPitch   float64
	flagMeter   bool
	flagNoSave  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riffloop [file]",
	Short: "Loop a segment of an audio file for practice",
	Long: `Riffloop plays a bounded segment of an audio file, optionally looping it
with a configurable pause between repetitions and an audible count-in before
the first pass. Speed and pitch are adjustable while playing.

Without a file argument it resumes the last saved session. Interactive keys:
space pause/resume, s stop, , and . seek one second, [ and ] change speed,
q quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Local flags for the play command
	rootCmd.Flags().Float64Var(&flagStart, "start", 0, "segment start in seconds")
	rootCmd.Flags().Float64Var(&flagEnd, "end", 0, "segment end in seconds (0 = end of file)")
	rootCmd.Flags().BoolVarP(&flagLoop, "loop", "l", false, "loop the segment")
	rootCmd.Flags().Float64Var(&flagPause, "pause", 0, "pause between loops in seconds")
	rootCmd.Flags().Float64Var(&flagCountIn, "count-in", 0, "count-in length in seconds")
	rootCmd.Flags().Float64Var(&flagSpeed, "speed", 1.0, "playback speed factor")
	rootCmd.Flags().Float64Var(&flagPitch, "pitch", 0, "pitch shift in semitones")
	rootCmd.Flags().BoolVar(&flagMeter, "meter", false, "show a level meter")
	rootCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "do not save the session on exit")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("logging.level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.Flags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runPlay plays a segment until it completes, the user quits, or a signal
// arrives.
func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	st, err := store.New("")
	if err != nil {
		return err
	}

	path, rec, err := resolveSession(cmd, st, args)
	if err != nil {
		return err
	}

	levelCh := make(chan float64, 1)
	var tap pipeline.TapFunc
	if flagMeter {
		m := meter.New(cfg.Audio.MeterBands, func(energies []float64) {
			peak := 0.0
			for _, e := range energies {
				if e > peak {
					peak = e
				}
			}
			select {
			case levelCh <- peak:
			default:
			}
		})
		tap = m.Process
	}

	pipe, err := pipeline.Open(path, pipeline.Config{
		BufferLength:    cfg.Audio.BufferLength,
		ResampleQuality: cfg.Audio.ResampleQuality,
		ToneFrequency:   cfg.Audio.ToneFrequency,
		Tap:             tap,
		Logger:          logger.WithComponent("pipeline"),
	})
	if err != nil {
		return err
	}
	defer pipe.Close()

	ctrl := engine.New(pipe, pipe.Info(), engine.Config{
		TrackInterval:   cfg.Playback.TrackInterval,
		CompletionGrace: cfg.Playback.CompletionGrace,
		Logger:          logger.WithComponent("engine"),
	})
	defer ctrl.Close()

	if err := applySession(cmd, ctrl, rec, pipe.Info()); err != nil {
		return err
	}

	// Idle is only reported after leaving it, so this fires on natural
	// completion or an explicit stop, never at startup.
	doneCh := make(chan struct{}, 1)
	ctrl.OnStateChange(func(s engine.State) {
		if s == engine.StateIdle {
			select {
			case doneCh <- struct{}{}:
			default:
			}
		}
	})

	if err := ctrl.Play(); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	keyCh, restore := startKeyReader()
	defer restore()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	printTick := time.NewTicker(100 * time.Millisecond)
	defer printTick.Stop()

	level := 0.0
	for {
		select {
		case sig := <-signalChan:
			fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
			return finish(ctrl, st, path)
		case <-doneCh:
			printStatus(ctrl, level)
			fmt.Println()
			return finish(ctrl, st, path)
		case l := <-levelCh:
			level = l
		case b := <-keyCh:
			if quit := handleKey(b, ctrl, os.Stderr); quit {
				fmt.Println()
				return finish(ctrl, st, path)
			}
		case <-printTick.C:
			printStatus(ctrl, level)
		}
	}
}

// resolveSession picks the file and saved record: an explicit argument wins,
// otherwise the last saved session is resumed.
func resolveSession(cmd *cobra.Command, st *store.Store, args []string) (string, *store.Record, error) {
	if len(args) == 1 {
		return args[0], nil, nil
	}
	rec, err := st.Load()
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return "", nil, errors.New("no file given and no saved session to resume")
		}
		return "", nil, err
	}
	return rec.Filename, rec, nil
}

// applySession configures the controller from the saved record, letting any
// explicitly set flag override it.
func applySession(cmd *cobra.Command, ctrl *engine.Controller, rec *store.Record, info engine.FileInfo) error {
	start, end := flagStart, flagEnd
	loop, pause := flagLoop, flagPause
	countIn, speed, pitch := flagCountIn, flagSpeed, flagPitch

	if rec != nil {
		if !cmd.Flags().Changed("start") {
			start = rec.StartTime
		}
		if !cmd.Flags().Changed("end") {
			end = rec.EndTime
		}
		if !cmd.Flags().Changed("loop") {
			loop = rec.IsLooping
		}
		if !cmd.Flags().Changed("pause") {
			pause = rec.PauseBetweenLoops
		}
		if !cmd.Flags().Changed("count-in") {
			countIn = rec.CountIn
		}
		if !cmd.Flags().Changed("speed") {
			speed = rec.Speed
		}
		if !cmd.Flags().Changed("pitch") {
			pitch = rec.Pitch
		}
	}

	if end <= 0 {
		end = info.Duration()
	}

	if err := ctrl.SetSegmentRange(start, end); err != nil {
		return err
	}
	if err := ctrl.SetLoop(loop, pause); err != nil {
		return err
	}
	if err := ctrl.SetCountIn(countIn); err != nil {
		return err
	}
	if err := ctrl.SetSpeed(speed); err != nil {
		return err
	}
	return ctrl.SetPitch(pitch)
}

// startKeyReader puts the terminal in raw mode and streams single key bytes.
// On a non-terminal stdin it returns a nil channel and a no-op restore.
func startKeyReader() (<-chan byte, func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, func() {}
	}

	keyCh := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				keyCh <- buf[0]
			}
		}
	}()

	return keyCh, func() { term.Restore(fd, oldState) }
}

// handleKey dispatches one transport key, reporting failures on errw.
// Returns true when the user quits.
func handleKey(b byte, ctrl *engine.Controller, errw io.Writer) bool {
	switch b {
	case ' ':
		if ctrl.State() == engine.StatePlaying {
			ctrl.Pause()
		} else {
			if err := ctrl.Play(); err != nil {
				fmt.Fprintf(errw, "\nplay: %v\n", err)
			}
		}
	case 's':
		ctrl.Stop()
	case ',':
		if err := ctrl.Seek(ctrl.CurrentPosition() - 1); err != nil {
			fmt.Fprintf(errw, "\nseek: %v\n", err)
		}
	case '.':
		if err := ctrl.Seek(ctrl.CurrentPosition() + 1); err != nil {
			fmt.Fprintf(errw, "\nseek: %v\n", err)
		}
	case '[':
		ctrl.SetSpeed(ctrl.Session().Speed - 0.05)
	case ']':
		ctrl.SetSpeed(ctrl.Session().Speed + 0.05)
	case 'q', 3: // q or Ctrl-C in raw mode
		return true
	}
	return false
}

func printStatus(ctrl *engine.Controller, level float64) {
	sess := ctrl.Session()
	bar := ""
	if flagMeter {
		bar = "  " + levelBar(level, 12)
	}
	fmt.Printf("\r[%-11s] %6.2fs / %.2fs  (%.2f-%.2f)  %.2fx%s ",
		ctrl.State(), ctrl.CurrentPosition(), sess.SegmentLength(),
		sess.Start, sess.End, sess.Speed, bar)
}

func levelBar(level float64, width int) string {
	n := int(level * float64(width) * 3) // RMS rarely nears 1.0, stretch it
	if n > width {
		n = width
	}
	return "|" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "|"
}

// finish stops playback and saves the session unless disabled.
func finish(ctrl *engine.Controller, st *store.Store, path string) error {
	ctrl.Stop()

	if flagNoSave {
		return nil
	}
	sess := ctrl.Session()
	err := st.Save(store.Record{
		Filename:          path,
		StartTime:         sess.Start,
		EndTime:           sess.End,
		Speed:             sess.Speed,
		Pitch:             sess.Pitch,
		IsLooping:         sess.Loop,
		PauseBetweenLoops: sess.LoopPause,
		CountIn:           sess.CountIn,
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
