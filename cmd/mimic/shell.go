package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/cwbudde/algo-mimic/library"
	"github.com/cwbudde/algo-mimic/recorder"
	"github.com/cwbudde/algo-mimic/trainer"
)

var errQuit = errors.New("quit")

const helpText = `Available commands:
  listen            - Play the reference recording
  record [seconds]  - Record an attempt for the given or configured length
  record open       - Record until 'stop' or Ctrl+C
  stop              - Stop recording or playback
  playback          - Play your last recording
  visualize         - Plot your last recording against the reference
  devices           - List audio devices
  input <name|#>    - Select the input device
  output <name|#>   - Select the output device
  history           - List saved attempts for this reference
  help              - Show this help
  quit              - Exit the program`

type takeResult struct {
	take *trainer.Take
	err  error
}

type shell struct {
	tr  *trainer.Trainer
	in  io.Reader
	out io.Writer

	// countdown is the pause between the 3..2..1 steps before recording.
	countdown time.Duration
	// defaultDuration is the length of a plain 'record'. Zero records until
	// stopped.
	defaultDuration time.Duration
	// progress renders a bar for timed recordings.
	progress bool

	// takes delivers the result of a timed recording running in the
	// background.
	takes chan takeResult
	timed bool
	sig   <-chan os.Signal

	ok   *color.Color
	warn *color.Color
	fail *color.Color
	info *color.Color
}

func newShell(tr *trainer.Trainer, in io.Reader, out io.Writer) *shell {
	return &shell{
		tr:        tr,
		in:        in,
		out:       out,
		countdown: time.Second,
		progress:  true,
		takes:     make(chan takeResult, 1),
		ok:        color.New(color.FgGreen),
		warn:      color.New(color.FgYellow),
		fail:      color.New(color.FgRed),
		info:      color.New(color.FgCyan),
	}
}

// run reads commands until quit, end of input or a signal while idle. A
// signal during recording or playback stops it instead.
func (s *shell) run(ctx context.Context, sig <-chan os.Signal) {
	s.sig = sig
	ref := s.tr.Reference()
	s.info.Fprintf(s.out, "Reference: %s (%s, %d Hz)\n",
		s.tr.ReferenceName(), library.FormatDuration(ref.Duration()), ref.SampleRate)
	fmt.Fprintln(s.out, helpText)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	s.prompt()
	for {
		select {
		case <-sig:
			if s.tr.Recorder().State() == recorder.Idle {
				fmt.Fprintln(s.out)
				s.shutdown(ctx)
				return
			}
			fmt.Fprintln(s.out)
			s.stop(ctx)
			s.prompt()
		case r := <-s.takes:
			s.timed = false
			s.report(r.take, r.err)
			s.prompt()
		case line, ok := <-lines:
			if !ok {
				s.shutdown(ctx)
				return
			}
			if err := s.dispatch(ctx, line); errors.Is(err, errQuit) {
				s.shutdown(ctx)
				return
			}
			s.prompt()
		}
	}
}

func (s *shell) shutdown(ctx context.Context) {
	if s.tr.Recorder().State() != recorder.Idle {
		s.stop(ctx)
	}
	if s.timed {
		r := <-s.takes
		s.timed = false
		s.report(r.take, r.err)
	}
	fmt.Fprintln(s.out, "Goodbye!")
}

func (s *shell) prompt() {
	fmt.Fprint(s.out, "\n> ")
}

func parseCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// parseSeconds parses a positive recording length in seconds.
func parseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid number of seconds %q", s)
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (s *shell) dispatch(ctx context.Context, line string) error {
	cmd, args := parseCommand(line)
	var err error
	switch cmd {
	case "":
		return nil
	case "listen":
		err = s.listen(ctx)
	case "record":
		err = s.record(ctx, args)
	case "stop":
		s.stop(ctx)
	case "playback":
		err = s.playback(ctx)
	case "visualize":
		err = s.visualize(ctx)
	case "devices":
		err = printDevices(s.out, s.tr.Recorder())
	case "input", "output":
		err = s.selectDevice(cmd == "input", args)
	case "history":
		err = s.history(ctx)
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		return errQuit
	default:
		s.warn.Fprintf(s.out, "Unknown command %q. Type 'help' for a list of commands.\n", cmd)
	}
	if err != nil {
		s.showError(err)
	}
	return err
}

func (s *shell) showError(err error) {
	switch {
	case errors.Is(err, recorder.ErrBusy):
		s.warn.Fprintln(s.out, "Audio is busy. Type 'stop' first.")
	case errors.Is(err, recorder.ErrEmptyClip):
		s.warn.Fprintln(s.out, "Nothing to play: the recording is empty.")
	case errors.Is(err, trainer.ErrNoAttempt):
		s.warn.Fprintln(s.out, "No recording available. Use 'record' first.")
	case errors.Is(err, recorder.ErrDeviceUnavailable):
		s.fail.Fprintf(s.out, "Audio device unavailable: %v\n", err)
	default:
		s.fail.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *shell) listen(ctx context.Context) error {
	if err := s.tr.Listen(ctx); err != nil {
		return err
	}
	s.info.Fprintf(s.out, "Playing reference (%s)...\n", library.FormatDuration(s.tr.Reference().Duration()))
	return nil
}

func (s *shell) record(ctx context.Context, args []string) error {
	if s.timed || s.tr.Recorder().State() != recorder.Idle {
		return recorder.ErrBusy
	}
	open := false
	var d time.Duration
	switch {
	case len(args) > 0 && strings.EqualFold(args[0], "open"):
		open = true
	case len(args) > 0:
		var err error
		if d, err = parseSeconds(args[0]); err != nil {
			return err
		}
	case s.defaultDuration > 0:
		d = s.defaultDuration
	default:
		open = true
	}

	if !s.countIn() {
		s.warn.Fprintln(s.out, "Recording cancelled.")
		return nil
	}
	if open {
		if err := s.tr.StartRecording(ctx); err != nil {
			return err
		}
		s.ok.Fprintln(s.out, "Recording... type 'stop' or press Ctrl+C to finish.")
		return nil
	}
	if d <= 0 {
		take, err := s.tr.RecordFor(ctx, 0)
		s.report(take, err)
		return nil
	}

	s.ok.Fprintf(s.out, "Recording for %s... type 'stop' to finish early.\n", library.FormatDuration(d))
	s.timed = true
	go func() {
		take, err := s.recordWithProgress(ctx, d)
		s.takes <- takeResult{take, err}
	}()
	return nil
}

// countIn prints the 3..2..1 count. It reports false when a signal arrives
// before recording starts.
func (s *shell) countIn() bool {
	if s.countdown <= 0 {
		select {
		case <-s.sig:
			return false
		default:
			return true
		}
	}
	fmt.Fprint(s.out, "Get ready")
	for i := 3; i > 0; i-- {
		fmt.Fprintf(s.out, "... %d", i)
		select {
		case <-s.sig:
			fmt.Fprintln(s.out)
			return false
		case <-time.After(s.countdown):
		}
	}
	fmt.Fprintln(s.out)
	return true
}

func (s *shell) recordWithProgress(ctx context.Context, d time.Duration) (*trainer.Take, error) {
	if !s.progress {
		return s.tr.RecordFor(ctx, d)
	}
	total := int64(d.Seconds() * float64(s.tr.Recorder().SampleRate()))
	p := mpb.New(mpb.WithOutput(s.out), mpb.WithWidth(40))
	bar := p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("Recording "),
			decor.Elapsed(decor.ET_STYLE_MMSS),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	rec := s.tr.Recorder()
	rec.SetProgress(func(captured, _ int) {
		bar.SetCurrent(int64(captured))
	})
	defer rec.SetProgress(nil)

	take, err := s.tr.RecordFor(ctx, d)
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()
	return take, err
}

func (s *shell) stop(ctx context.Context) {
	state := s.tr.Recorder().State()
	if state == recorder.Idle {
		s.warn.Fprintln(s.out, "Nothing to stop.")
		return
	}
	take, err := s.tr.Stop(ctx)
	if state == recorder.Playing {
		if err != nil {
			s.showError(err)
			return
		}
		s.info.Fprintln(s.out, "Playback stopped.")
		return
	}
	if s.timed {
		// the background recording reports the take
		return
	}
	s.report(take, err)
}

func (s *shell) report(take *trainer.Take, err error) {
	if err != nil {
		s.showError(err)
		return
	}
	if take == nil {
		return
	}
	if take.Clip.IsEmpty() {
		s.warn.Fprintln(s.out, "Recording is empty; nothing was saved.")
		return
	}
	s.ok.Fprintf(s.out, "Recording saved to: %s (%s)\n", take.Path, library.FormatDuration(take.Clip.Duration()))
	if take.LowLevel {
		s.warn.Fprintln(s.out, "Warning: very low audio level. Check your microphone.")
	}
}

func (s *shell) playback(ctx context.Context) error {
	if err := s.tr.Playback(ctx); err != nil {
		return err
	}
	s.info.Fprintln(s.out, "Playing your attempt...")
	return nil
}

func (s *shell) visualize(ctx context.Context) error {
	cmp, path, err := s.tr.Visualize(ctx)
	if err != nil {
		return err
	}
	ref, att := cmp.Reference.Summary(), cmp.Attempt.Summary()
	fmt.Fprintf(s.out, "%-10s %8s %8s %10s %12s\n", "", "Length", "Peak", "RMS", "Centroid Hz")
	fmt.Fprintf(s.out, "%-10s %8s %8.3f %10.4f %12.1f\n", "Reference",
		library.FormatDuration(time.Duration(ref.Seconds*float64(time.Second))), ref.Peak, ref.RMS, ref.MeanCentroidHz)
	fmt.Fprintf(s.out, "%-10s %8s %8.3f %10.4f %12.1f\n", "Attempt",
		library.FormatDuration(time.Duration(att.Seconds*float64(time.Second))), att.Peak, att.RMS, att.MeanCentroidHz)
	s.ok.Fprintf(s.out, "Comparison plot written to: %s\n", path)
	return nil
}

func (s *shell) selectDevice(input bool, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: input|output <name or #>")
	}
	dev, err := selectDevice(s.tr.Recorder(), strings.Join(args, " "), input)
	if err != nil {
		return err
	}
	kind := "Output"
	if input {
		kind = "Input"
	}
	s.ok.Fprintf(s.out, "%s device: %s\n", kind, dev.Name)
	return nil
}

func (s *shell) history(ctx context.Context) error {
	attempts, err := s.tr.History(ctx)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintln(s.out, "No attempts saved yet.")
		return nil
	}
	for _, a := range attempts {
		fmt.Fprintf(s.out, "%3d  %s  %s  peak %.2f  %s\n",
			a.ID, a.CreatedAt.Format("2006-01-02 15:04"), library.FormatDuration(a.Duration), a.Peak, a.Path)
	}
	return nil
}
