// Package push sends alert transitions through shoutrrr notification URLs.
package push

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/beewatch/backend/internal/alert"
	"github.com/beewatch/backend/internal/db/models"
	"github.com/beewatch/backend/internal/utils"
	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// Sink pushes alert events to every configured service
type Sink struct {
	sender *router.ServiceRouter
	logger *utils.Logger
}

// NewSink validates urls and builds a single sender for all of them
func NewSink(urls []string, timeout time.Duration, logger *utils.Logger) (*Sink, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one push URL is required")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// The raw error may echo tokens embedded in the URL
		return nil, fmt.Errorf("invalid push URL configuration: %w", utils.ErrBadRequest)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &Sink{sender: sender, logger: logger.Named("push")}, nil
}

// Name implements alert.Sink
func (s *Sink) Name() string { return "push" }

// Publish implements alert.Sink
func (s *Sink) Publish(_ context.Context, e alert.Event) error {
	params := stypes.Params{}
	params.SetTitle(e.Title())

	for _, err := range s.sender.Send(Message(e), &params) {
		if err != nil {
			return fmt.Errorf("push delivery failed: %w", err)
		}
	}
	return nil
}

// Message renders the notification body for e
func Message(e alert.Event) string {
	var b strings.Builder
	if e.Kind == models.AlertCleared {
		fmt.Fprintf(&b, "Hive back to normal at %s.", e.Time.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Alert raised at %s.", e.Time.Format(time.RFC3339))
	}

	fmt.Fprintf(&b, " Active bees (window mean): %.1f, threshold %.0f.", e.WindowMean, e.Thresholds.ActivityThreshold)
	if e.Noise != nil {
		fmt.Fprintf(&b, " Noise: %.1f dB, ceiling %.0f dB.", *e.Noise, e.Thresholds.NoiseCeiling)
	}
	return b.String()
}
