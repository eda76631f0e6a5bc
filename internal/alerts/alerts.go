// Package alerts publishes trade decisions to an SNS topic.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"tradingapi/internal/trading"
)

type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Notifier struct {
	client   Publisher
	topicArn string
	now      func() time.Time
}

func NewNotifier(client Publisher, topicArn string) (*Notifier, error) {
	topicArn = strings.TrimSpace(topicArn)
	if topicArn == "" {
		return nil, errors.New("alerts: missing topic arn")
	}
	return &Notifier{client: client, topicArn: topicArn, now: time.Now}, nil
}

var _ trading.Notifier = &Notifier{}

// NotifyDecisions publishes one message listing the BUY and SELL decisions.
// Nothing is sent when every decision is STAY.
func (n *Notifier) NotifyDecisions(ctx context.Context, tickID string, decisions []trading.Decision) error {
	subject, message, ok := buildMessage(tickID, decisions, n.now())
	if !ok {
		return nil
	}
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func buildMessage(tickID string, decisions []trading.Decision, now time.Time) (subject, body string, ok bool) {
	var trades []trading.Decision
	for _, d := range decisions {
		if d.Action != trading.ActionStay {
			trades = append(trades, d)
		}
	}
	if len(trades) == 0 {
		return "", "", false
	}

	// SNS subjects are capped at 100 characters.
	subject = fmt.Sprintf("Trading API: %d trade(s) for tick %s", len(trades), tickID)
	if len(subject) > 100 {
		subject = subject[:100]
	}

	lines := []string{
		"Trading API Decisions",
		"",
		fmt.Sprintf("Tick: %s", tickID),
	}
	for _, d := range trades {
		lines = append(lines, fmt.Sprintf("%s %s x %g", d.Action, d.Ticker, d.Quantity))
	}
	lines = append(lines, "", fmt.Sprintf("DecidedAt: %s", now.UTC().Format(time.RFC3339)))

	return subject, strings.Join(lines, "\n"), true
}
