package discord

import (
	"context"
	"fmt"

	"github.com/lisanmuaddib/trendscout/pkg/profiles"
	"github.com/lisanmuaddib/trendscout/pkg/retry"
	"github.com/sirupsen/logrus"
)

// PublishError reports that one profile could not be announced after
// exhausting retries. The run coordinator treats it as non-fatal and moves on
// to the next profile.
type PublishError struct {
	ProfileID string
	Username  string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing profile %s (@%s): %v", e.ProfileID, e.Username, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Poster delivers one announcement per profile. Implementations differ only
// in where the embed lands.
type Poster interface {
	Post(ctx context.Context, p profiles.Profile) error
}

// NewPoster selects the delivery strategy configured on the client. The
// choice is made once here rather than branched on per publish.
func NewPoster(client *Client) (Poster, error) {
	switch client.config.Mode {
	case ModeDirect:
		return &directPoster{client: client}, nil
	case ModeThread:
		return &threadPoster{client: client}, nil
	default:
		return nil, fmt.Errorf("unknown delivery mode: %q", client.config.Mode)
	}
}

// directPoster sends the embed straight into the configured channel.
type directPoster struct {
	client *Client
}

func (d *directPoster) Post(ctx context.Context, p profiles.Profile) error {
	c := d.client
	log := c.logger.WithFields(logrus.Fields{
		"profile_id": p.ID,
		"username":   p.Username,
		"mode":       ModeDirect,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return &PublishError{ProfileID: p.ID, Username: p.Username, Err: err}
	}

	embed := BuildProfileEmbed(p)
	err := retry.Do(ctx, c.retryCfg, log, "post message", func(ctx context.Context) error {
		_, err := c.createMessage(ctx, c.config.ChannelID, embed)
		return err
	})
	if err != nil {
		return &PublishError{ProfileID: p.ID, Username: p.Username, Err: err}
	}

	log.Info("Posted profile announcement")
	return nil
}

// threadPoster creates a per-profile thread, then posts the embed into it.
type threadPoster struct {
	client *Client
}

func (t *threadPoster) Post(ctx context.Context, p profiles.Profile) error {
	c := t.client
	log := c.logger.WithFields(logrus.Fields{
		"profile_id": p.ID,
		"username":   p.Username,
		"mode":       ModeThread,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return &PublishError{ProfileID: p.ID, Username: p.Username, Err: err}
	}

	var thread *Thread
	err := retry.Do(ctx, c.retryCfg, log, "create thread", func(ctx context.Context) error {
		th, err := c.createThread(ctx, threadName(p))
		if err != nil {
			return err
		}
		thread = th
		return nil
	})
	if err != nil {
		return &PublishError{ProfileID: p.ID, Username: p.Username, Err: err}
	}

	embed := BuildProfileEmbed(p)
	err = retry.Do(ctx, c.retryCfg, log.WithField("thread_id", thread.ID), "post message", func(ctx context.Context) error {
		_, err := c.createMessage(ctx, thread.ID, embed)
		return err
	})
	if err != nil {
		return &PublishError{ProfileID: p.ID, Username: p.Username, Err: err}
	}

	log.WithField("thread_id", thread.ID).Info("Posted profile announcement to thread")
	return nil
}
