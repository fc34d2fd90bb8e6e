// Package awsutil holds the AWS SDK plumbing shared by the Polly and S3 clients.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/smithy-go"

	"newsreel/internal/services"
)

// LoadConfig resolves credentials through the SDK default chain for the region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

var throttlingCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottledException":              {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"SlowDown":                               {},
	"ServiceUnavailable":                     {},
	"ServiceFailureException":                {},
	"InternalError":                          {},
	"RequestTimeout":                         {},
}

var credentialCodes = map[string]struct{}{
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"InvalidAccessKeyId":          {},
	"SignatureDoesNotMatch":       {},
	"UnrecognizedClientException": {},
	"ExpiredToken":                {},
	"ExpiredTokenException":       {},
	"NoSuchBucket":                {},
}

// Classify tags an AWS SDK error for the stage error taxonomy. Throttling,
// server faults, and network failures are transient; credential and missing
// resource errors are configuration problems; other client faults take the
// supplied marker.
func Classify(clientFault error, stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := throttlingCodes[code]; ok {
			return services.Wrap(services.ErrTransientExternal, stage, operation, code, err)
		}
		if _, ok := credentialCodes[code]; ok {
			return services.WithHint(
				services.Wrap(services.ErrConfiguration, stage, operation, code, err),
				"check AWS credentials, region, and resource names",
			)
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return services.Wrap(clientFault, stage, operation, code, err)
		}
		return services.Wrap(services.ErrTransientExternal, stage, operation, code, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return services.Wrap(services.ErrTransientExternal, stage, operation, "network error", err)
	}
	return services.Wrap(services.ErrTransientExternal, stage, operation, "request failed", err)
}
