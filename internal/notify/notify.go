package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
)

// SNS rejects messages larger than 256KB
const maxMessageBytes = 256 * 1024

// Subjects must be shorter than 100 characters
const maxSubjectLength = 99

type Notifier interface {
	NotifyResult(ctx context.Context, result *report.Result) error
}

// Publisher is the subset of *sns.Client the notifier uses
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSNotifier struct {
	Client Publisher
	Topic  string
}

func NewSNSNotifier(ctx context.Context, topic, profile, region string) (*SNSNotifier, error) {
	var configOpts []func(*config.LoadOptions) error
	if profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		configOpts = append(configOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSNotifier{Client: sns.NewFromConfig(cfg), Topic: topic}, nil
}

// NotifyResult publishes the failed files of a run. Runs without failures send nothing.
func (s *SNSNotifier) NotifyResult(ctx context.Context, result *report.Result) error {
	failed := result.Failed()
	if len(failed) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Sync Errors: %s -> %s", result.Source, result.Destination)
	subject = truncateSubject(subject)

	_, err := s.Client.Publish(ctx, &sns.PublishInput{
		Message:  aws.String(buildMessage(result, failed)),
		TopicArn: aws.String(s.Topic),
		Subject:  aws.String(subject),
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// truncateSubject cuts s to maxSubjectLength bytes on a rune boundary
func truncateSubject(s string) string {
	if len(s) <= maxSubjectLength {
		return s
	}
	cut := maxSubjectLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func buildMessage(result *report.Result, failed []report.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d files failed (%d uploaded, %d skipped)\n\n",
		result.Summary.Failed, len(result.Outcomes), result.Summary.Uploaded, result.Summary.Skipped)

	for i, o := range failed {
		entry := fmt.Sprintf("Kind: %s\nFile: %s\nError: %s\n\n", o.ErrorKind, o.Path, o.Error)
		if b.Len()+len(entry) > maxMessageBytes-128 {
			fmt.Fprintf(&b, "... and %d more\n", len(failed)-i)
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}
