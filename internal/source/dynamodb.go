package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/xferlink/internal/history"
	"github.com/dennisdiepolder/xferlink/internal/types"
	"github.com/rs/zerolog"
)

// DynamoDBSource implements CallSource over the raw call tables. Each table
// is partitioned by DateKey (YYYY-MM-DD) with CallID as sort key; a window
// query fans out over the dates it covers and filters on CalledTime.
type DynamoDBSource struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBSource creates a new DynamoDB call source
func NewDynamoDBSource(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBSource, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB call source initialized")

	return &DynamoDBSource{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// campaignItem is a raw dialer call row.
type campaignItem struct {
	DateKey        string `dynamodbav:"DateKey"`
	CallID         string `dynamodbav:"CallID"`
	AgentExtension string `dynamodbav:"AgentExtension"`
	AgentName      string `dynamodbav:"AgentName"`
	CustomerNumber string `dynamodbav:"CustomerNumber"`
	CalledTime     int64  `dynamodbav:"CalledTime"`
	AgentHistory   string `dynamodbav:"AgentHistory"`
	LeadHistory    string `dynamodbav:"LeadHistory"`
	RecordingURL   string `dynamodbav:"RecordingURL"`
}

// outboundItem is a raw direct outbound call row.
type outboundItem struct {
	DateKey        string `dynamodbav:"DateKey"`
	CallID         string `dynamodbav:"CallID"`
	AgentExt       string `dynamodbav:"AgentExt"`
	AgentName      string `dynamodbav:"AgentName"`
	CustomerNumber string `dynamodbav:"CustomerNumber"`
	Callee         string `dynamodbav:"Callee"`
	CalledTime     int64  `dynamodbav:"CalledTime"`
	AgentHistory   string `dynamodbav:"AgentHistory"`
	RecordingURL   string `dynamodbav:"RecordingURL"`
}

// inboundItem is a raw inbound queue call row.
type inboundItem struct {
	DateKey        string `dynamodbav:"DateKey"`
	CallID         string `dynamodbav:"CallID"`
	CallerIDNumber string `dynamodbav:"CallerIDNumber"`
	CalleeIDNumber string `dynamodbav:"CalleeIDNumber"`
	AgentExtension string `dynamodbav:"AgentExtension"`
	AgentName      string `dynamodbav:"AgentName"`
	Abandoned      any    `dynamodbav:"Abandoned"`
	CalledTime     int64  `dynamodbav:"CalledTime"`
	AgentHistory   string `dynamodbav:"AgentHistory"`
	RecordingURL   string `dynamodbav:"RecordingURL"`
}

func (s *DynamoDBSource) CampaignCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error) {
	items, err := s.queryWindow(ctx, s.config.CampaignTable, from, to)
	if err != nil {
		return nil, err
	}

	var raw []campaignItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign calls: %w", err)
	}

	records := make([]*types.CallRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, &types.CallRecord{
			ID:             item.CallID,
			Role:           types.RoleCampaign,
			CustomerNumber: item.CustomerNumber,
			CalledTime:     history.NormalizeTimestamp(item.CalledTime),
			AgentExtension: item.AgentExtension,
			AgentName:      item.AgentName,
			History:        history.Normalize(item.AgentHistory),
			LeadHistory:    history.Normalize(item.LeadHistory),
			RecordingURL:   item.RecordingURL,
		})
	}
	return records, nil
}

func (s *DynamoDBSource) OutboundCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error) {
	items, err := s.queryWindow(ctx, s.config.OutboundTable, from, to)
	if err != nil {
		return nil, err
	}

	var raw []outboundItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbound calls: %w", err)
	}

	records := make([]*types.CallRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, &types.CallRecord{
			ID:             item.CallID,
			Role:           types.RoleOutbound,
			CalleeNumber:   item.Callee,
			CustomerNumber: item.CustomerNumber,
			CalledTime:     history.NormalizeTimestamp(item.CalledTime),
			AgentExtension: item.AgentExt,
			AgentName:      item.AgentName,
			History:        history.Normalize(item.AgentHistory),
			RecordingURL:   item.RecordingURL,
		})
	}
	return records, nil
}

func (s *DynamoDBSource) InboundCalls(ctx context.Context, from, to time.Time) ([]*types.CallRecord, error) {
	items, err := s.queryWindow(ctx, s.config.InboundTable, from, to)
	if err != nil {
		return nil, err
	}

	var raw []inboundItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inbound calls: %w", err)
	}

	records := make([]*types.CallRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, &types.CallRecord{
			ID:             item.CallID,
			Role:           types.RoleInbound,
			CallerNumber:   item.CallerIDNumber,
			CalleeNumber:   item.CalleeIDNumber,
			CalledTime:     history.NormalizeTimestamp(item.CalledTime),
			AgentExtension: item.AgentExtension,
			AgentName:      item.AgentName,
			History:        history.Normalize(item.AgentHistory),
			Abandoned:      abandonedFlag(item.Abandoned),
			RecordingURL:   item.RecordingURL,
		})
	}
	return records, nil
}

// queryWindow queries one table for every date the window touches,
// filtering on CalledTime.
func (s *DynamoDBSource) queryWindow(ctx context.Context, table string, from, to time.Time) ([]map[string]ddbtypes.AttributeValue, error) {
	var items []map[string]ddbtypes.AttributeValue

	for _, dateKey := range dateKeys(from, to) {
		keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
		filter := expression.Name("CalledTime").Between(
			expression.Value(from.Unix()),
			expression.Value(to.Unix()),
		)
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}

		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(table),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		items = append(items, result.Items...)
	}

	return items, nil
}

// dateKeys lists the YYYY-MM-DD partition keys a window covers.
func dateKeys(from, to time.Time) []string {
	var keys []string
	day := from.UTC().Truncate(24 * time.Hour)
	last := to.UTC().Truncate(24 * time.Hour)
	for !day.After(last) {
		keys = append(keys, day.Format("2006-01-02"))
		day = day.Add(24 * time.Hour)
	}
	return keys
}

// abandonedFlag folds the flag variants the sources use (bool, "Yes",
// "true", 1).
func abandonedFlag(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "yes", "true", "y", "1":
			return true
		}
		return false
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}
