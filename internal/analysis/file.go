package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
	"github.com/tphakala/leafscan/internal/report"
)

// FileOptions controls a one-shot detection.
type FileOptions struct {
	User     string
	Language string
	// Translate prints the remedy in Language as well.
	Translate bool
	// Analyze prints the image quality analysis.
	Analyze bool
	// ReportPath, when set, receives the exported report.
	ReportPath string
	// Questions are asked in order after a disease was detected.
	Questions []string
}

// FileDetection runs one detection on path and writes the result to w.
func FileDetection(ctx context.Context, svc *Service, path string, opts FileOptions, w io.Writer) error {
	if err := validateImageFile(path); err != nil {
		return err
	}
	if err := svc.ConnectMQTT(ctx); err != nil {
		GetLogger().Warn("MQTT unavailable, detection event will not be published", logger.Error(err))
	}

	sess := svc.Sessions.Create(opts.User, opts.Language)
	defer svc.Sessions.Delete(sess.ID)

	res := svc.Pipeline.Detect(ctx, sess, path)
	fmt.Fprintln(w, res.Message)
	if !res.OK() {
		return res.Err
	}

	out := res.Outcome
	fmt.Fprintf(w, "Label: %s (%.1f%%)\n", classifier.Display(out.Prediction.Label), out.Prediction.Confidence*100)
	fmt.Fprintf(w, "Advice: %s\n", out.Advice)
	if res.HistoryErr != nil {
		fmt.Fprintf(w, "Warning: detection was not saved to history: %v\n", res.HistoryErr)
	}

	if opts.Translate {
		msg, _ := svc.Pipeline.Translate(sess)
		fmt.Fprintf(w, "\n%s\n", msg)
	}

	if out.CanChat {
		for _, turn := range sess.Turns() {
			fmt.Fprintf(w, "%s: %s\n", turn.Sender, turn.Message)
		}
		for _, q := range opts.Questions {
			ans, err := svc.Pipeline.Ask(ctx, sess, q)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "User: %s\nAI: %s\n", strings.TrimSpace(q), ans.Reply)
		}
	}

	if opts.Analyze && out.CanAnalyze {
		q, err := svc.Pipeline.Analyze(sess)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s", q.String())
	}

	if opts.ReportPath != "" && out.CanExport {
		r, err := svc.Pipeline.Report(sess)
		if err != nil {
			return err
		}
		if err := report.Write(opts.ReportPath, r); err != nil {
			return err
		}
		fmt.Fprintf(w, "Report saved to %s\n", opts.ReportPath)
	}
	return nil
}

// validateImageFile checks that path names a regular, non-empty file.
func validateImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.New(fmt.Errorf("error accessing the path: %w", err)).
			Component("analysis").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	if info.IsDir() {
		return errors.Newf("the path %s is a directory, not a file", path).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() == 0 {
		return errors.Newf("the file %s is empty", path).
			Component("analysis").
			Category(errors.CategoryValidation).
			FileContext(path, 0).
			Build()
	}
	return nil
}
