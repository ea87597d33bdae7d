package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog/log"

	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/sinks"
)

// DefaultNamespace is used when aws.namespace is not configured.
const DefaultNamespace = "WebexPartnerOps"

type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchSink publishes run summaries as CloudWatch custom metrics
type CloudWatchSink struct {
	client    metricPutter
	region    string
	namespace string
}

func init() {
	sinks.RegisterSink("cloudwatch", func(cfg *config.Config) (sinks.Sink, error) {
		return NewCloudWatchSink(context.Background(), cfg.AWS)
	})
}

// NewCloudWatchSink creates a CloudWatch sink for the configured region and profile
func NewCloudWatchSink(ctx context.Context, cfg config.AWSConfig) (*CloudWatchSink, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region is not configured (set aws.region or AWS_REGION)")
	}

	log.Debug().Str("region", cfg.Region).Str("profile", cfg.Profile).Msg("initializing CloudWatch sink")

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("AWS region is still empty after loading config")
	}

	return newSink(cloudwatch.NewFromConfig(awsCfg), awsCfg.Region, cfg.Namespace), nil
}

func newSink(client metricPutter, region, namespace string) *CloudWatchSink {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CloudWatchSink{client: client, region: region, namespace: namespace}
}

// Name returns the sink name
func (c *CloudWatchSink) Name() string {
	return "cloudwatch"
}

// Publish writes the run counters and duration under the Workflow dimension
func (c *CloudWatchSink) Publish(ctx context.Context, s sinks.Summary) error {
	dims := []types.Dimension{{Name: aws.String("Workflow"), Value: aws.String(s.Workflow)}}
	at := s.FinishedAt

	datum := func(name string, value float64, unit types.StandardUnit) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(value),
			Unit:       unit,
			Dimensions: dims,
			Timestamp:  aws.Time(at),
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(c.namespace),
		MetricData: []types.MetricDatum{
			datum("OrgsSucceeded", float64(s.Succeeded), types.StandardUnitCount),
			datum("OrgsFailed", float64(s.Failed), types.StandardUnitCount),
			datum("RowsFlagged", float64(s.Flagged), types.StandardUnitCount),
			datum("RunDuration", s.Duration().Seconds(), types.StandardUnitSeconds),
		},
	}

	if _, err := c.client.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("error putting metrics to %s in %s: %w", c.namespace, c.region, err)
	}
	return nil
}
