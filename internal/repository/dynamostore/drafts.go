package dynamostore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wardrockay/followup-engine/internal/domain"
)

// GetDraft returns the draft by id, or (nil, nil) when it does not exist —
// the Repository.GetDraft contract lets the caller translate that into its own
// not-found sentinel.
func (s *Store) GetDraft(ctx context.Context, draftID string) (*domain.Draft, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.draftsTable),
		Key: map[string]types.AttributeValue{
			"draft_id": &types.AttributeValueMemberS{Value: draftID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting draft %s: %w", draftID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item draftItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling draft %s: %w", draftID, err)
	}
	return item.toDomain(), nil
}

// UpdateDraftFollowups sets followup_ids and followups_scheduled on an
// existing draft.
func (s *Store) UpdateDraftFollowups(ctx context.Context, draftID string, followupIDs []string, scheduled bool) error {
	ids := make([]types.AttributeValue, 0, len(followupIDs))
	for _, id := range followupIDs {
		ids = append(ids, &types.AttributeValueMemberS{Value: id})
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.draftsTable),
		Key: map[string]types.AttributeValue{
			"draft_id": &types.AttributeValueMemberS{Value: draftID},
		},
		UpdateExpression: aws.String("SET followup_ids = :ids, followups_scheduled = :scheduled"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ids":       &types.AttributeValueMemberL{Value: ids},
			":scheduled": &types.AttributeValueMemberBOOL{Value: scheduled},
		},
	})
	if err != nil {
		return fmt.Errorf("updating draft %s followups: %w", draftID, err)
	}
	return nil
}

// ListSentDraftsEligibleForScheduling queries the status-index for
// status=sent, then filters to initial (followup_number=0), non-opt-out
// drafts in the application layer — a sparse filter DynamoDB can't express
// as a key condition.
func (s *Store) ListSentDraftsEligibleForScheduling(ctx context.Context) ([]*domain.Draft, error) {
	drafts, err := s.queryDraftsByStatus(ctx, string(domain.DraftSent))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Draft, 0, len(drafts))
	for _, d := range drafts {
		if d.EligibleForScheduling() {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListSentDraftHistory queries the external-id-index for externalID, then
// filters to status=sent and followup_number < belowFollowupNumber.
func (s *Store) ListSentDraftHistory(ctx context.Context, externalID string, belowFollowupNumber int) ([]*domain.Draft, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.draftsTable),
		IndexName:              aws.String(ExternalIDIndex),
		KeyConditionExpression: aws.String("x_external_id = :eid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":eid": &types.AttributeValueMemberS{Value: externalID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying draft history for %s: %w", externalID, err)
	}

	out := make([]*domain.Draft, 0, len(result.Items))
	for _, raw := range result.Items {
		var item draftItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		d := item.toDomain()
		if d.Status == domain.DraftSent && d.FollowupNumber < belowFollowupNumber {
			out = append(out, d)
		}
	}
	sortDraftsByFollowupNumber(out)
	return out, nil
}

// ListDraftsMissingFollowupIDs scans the drafts table for items with an
// empty followup_ids list. This is an operator-triggered repair operation,
// run far less often than the hot paths above, so a scan is acceptable.
func (s *Store) ListDraftsMissingFollowupIDs(ctx context.Context) ([]*domain.Draft, error) {
	return s.scanDraftsWithFilter(ctx, "size(followup_ids) = :zero", map[string]types.AttributeValue{
		":zero": &types.AttributeValueMemberN{Value: "0"},
	})
}

// ListDraftsMissingScheduledFlag scans for drafts with a non-empty
// followup_ids but followups_scheduled still false.
func (s *Store) ListDraftsMissingScheduledFlag(ctx context.Context) ([]*domain.Draft, error) {
	return s.scanDraftsWithFilter(ctx, "size(followup_ids) > :zero AND followups_scheduled = :false", map[string]types.AttributeValue{
		":zero":  &types.AttributeValueMemberN{Value: "0"},
		":false": &types.AttributeValueMemberBOOL{Value: false},
	})
}

func (s *Store) scanDraftsWithFilter(ctx context.Context, filter string, values map[string]types.AttributeValue) ([]*domain.Draft, error) {
	var out []*domain.Draft
	var startKey map[string]types.AttributeValue

	for {
		result, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.draftsTable),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scanning drafts: %w", err)
		}
		for _, raw := range result.Items {
			var item draftItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				continue
			}
			out = append(out, item.toDomain())
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return out, nil
}

func (s *Store) queryDraftsByStatus(ctx context.Context, status string) ([]*domain.Draft, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.draftsTable),
		IndexName:              aws.String(StatusIndex),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying drafts by status %s: %w", status, err)
	}

	out := make([]*domain.Draft, 0, len(result.Items))
	for _, raw := range result.Items {
		var item draftItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		out = append(out, item.toDomain())
	}
	return out, nil
}

func sortDraftsByFollowupNumber(drafts []*domain.Draft) {
	for i := 1; i < len(drafts); i++ {
		for j := i; j > 0 && drafts[j].FollowupNumber < drafts[j-1].FollowupNumber; j-- {
			drafts[j], drafts[j-1] = drafts[j-1], drafts[j]
		}
	}
}
