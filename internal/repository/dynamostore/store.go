package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

var _ followup.Repository = (*Store)(nil)

const (
	// StatusIndex is the email_drafts GSI on status.
	StatusIndex = "status-index"
	// ExternalIDIndex is the email_drafts GSI on x_external_id.
	ExternalIDIndex = "external-id-index"
	// StatusScheduledIndex is the email_followups GSI with hash key status
	// and range key scheduled_for.
	StatusScheduledIndex = "status-scheduled-index"
	// DraftIDIndex is the email_followups GSI on draft_id.
	DraftIDIndex = "draft-id-index"
)

// Store is the DynamoDB-backed implementation of followup.Repository.
type Store struct {
	client         *dynamodb.Client
	draftsTable    string
	followupsTable string
}

// Config names the two tables; defaults match SPEC_FULL.md §6.2.
type Config struct {
	DraftsTable    string
	FollowupsTable string
	Region         string
	Profile        string
}

func (c *Config) setDefaults() {
	if c.DraftsTable == "" {
		c.DraftsTable = "email_drafts"
	}
	if c.FollowupsTable == "" {
		c.FollowupsTable = "email_followups"
	}
}

// New builds a Store, loading AWS credentials the same way the teacher's
// AWSStorage does: WithSharedConfigProfile when a profile is set, a plain
// region-scoped config otherwise.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.setDefaults()

	var awsCfg aws.Config
	var err error
	if cfg.Profile != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Store{
		client:         dynamodb.NewFromConfig(awsCfg),
		draftsTable:    cfg.DraftsTable,
		followupsTable: cfg.FollowupsTable,
	}, nil
}

// NewWithClient builds a Store around an already-configured client, for
// tests that point at a local DynamoDB endpoint.
func NewWithClient(client *dynamodb.Client, cfg Config) *Store {
	cfg.setDefaults()
	return &Store{client: client, draftsTable: cfg.DraftsTable, followupsTable: cfg.FollowupsTable}
}

// Ping verifies both tables are reachable and active, for the health
// endpoint.
func (s *Store) Ping(ctx context.Context) error {
	for _, table := range []string{s.draftsTable, s.followupsTable} {
		out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err != nil {
			return fmt.Errorf("describing table %s: %w", table, err)
		}
		if out.Table.TableStatus != "ACTIVE" {
			return fmt.Errorf("table %s is %s, not ACTIVE", table, out.Table.TableStatus)
		}
	}
	return nil
}
