package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wardrockay/followup-engine/internal/domain"
	"github.com/wardrockay/followup-engine/internal/service/followup"
)

// batchWriteLimit is DynamoDB's per-request item ceiling for BatchWriteItem.
const batchWriteLimit = 25

// ExistsFollowupsForDraft queries the draft-id-index and reports whether
// any task exists for draftID.
func (s *Store) ExistsFollowupsForDraft(ctx context.Context, draftID string) (bool, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.followupsTable),
		IndexName:              aws.String(DraftIDIndex),
		KeyConditionExpression: aws.String("draft_id = :did"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":did": &types.AttributeValueMemberS{Value: draftID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("checking existing followups for %s: %w", draftID, err)
	}
	return len(result.Items) > 0, nil
}

// CreateFollowupBatch writes every task via BatchWriteItem, chunked at 25
// items. Our scheduler always writes exactly 4, well under the ceiling;
// the chunking exists only to make the repository itself correct under a
// larger batch, not because this system ever sends one.
func (s *Store) CreateFollowupBatch(ctx context.Context, tasks []*domain.FollowupTask) error {
	for start := 0; start < len(tasks); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(tasks) {
			end = len(tasks)
		}

		writeRequests := make([]types.WriteRequest, 0, end-start)
		for _, t := range tasks[start:end] {
			av, err := attributevalue.MarshalMap(fromFollowup(t))
			if err != nil {
				return fmt.Errorf("marshaling task %s: %w", t.TaskID, err)
			}
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: av},
			})
		}

		_, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.followupsTable: writeRequests,
			},
		})
		if err != nil {
			return fmt.Errorf("batch-writing followup tasks: %w", err)
		}
	}
	return nil
}

// ListScheduledFollowupsForDraft queries draft-id-index then filters to
// status=scheduled in the application layer.
func (s *Store) ListScheduledFollowupsForDraft(ctx context.Context, draftID string) ([]*domain.FollowupTask, error) {
	tasks, err := s.queryFollowupsByDraftID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.FollowupTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == domain.FollowupScheduled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) queryFollowupsByDraftID(ctx context.Context, draftID string) ([]*domain.FollowupTask, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.followupsTable),
		IndexName:              aws.String(DraftIDIndex),
		KeyConditionExpression: aws.String("draft_id = :did"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":did": &types.AttributeValueMemberS{Value: draftID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying followups for draft %s: %w", draftID, err)
	}
	out := make([]*domain.FollowupTask, 0, len(result.Items))
	for _, raw := range result.Items {
		var item followupItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		out = append(out, item.toDomain())
	}
	return out, nil
}

// ListDueFollowups queries the status-scheduled-index's scheduled
// partition with a range key condition of scheduled_for <= now.
func (s *Store) ListDueFollowups(ctx context.Context, now time.Time) ([]*domain.FollowupTask, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.followupsTable),
		IndexName:              aws.String(StatusScheduledIndex),
		KeyConditionExpression: aws.String("#status = :status AND scheduled_for <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(domain.FollowupScheduled)},
			":now":    &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying due followups: %w", err)
	}

	out := make([]*domain.FollowupTask, 0, len(result.Items))
	for _, raw := range result.Items {
		var item followupItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		out = append(out, item.toDomain())
	}
	return out, nil
}

// ListFailedFollowups queries status-scheduled-index's failed partition.
func (s *Store) ListFailedFollowups(ctx context.Context) ([]*domain.FollowupTask, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.followupsTable),
		IndexName:              aws.String(StatusScheduledIndex),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(domain.FollowupFailed)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying failed followups: %w", err)
	}

	out := make([]*domain.FollowupTask, 0, len(result.Items))
	for _, raw := range result.Items {
		var item followupItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		out = append(out, item.toDomain())
	}
	return out, nil
}

// GetFollowup returns a single task by id, or (nil, nil) if absent.
func (s *Store) GetFollowup(ctx context.Context, taskID string) (*domain.FollowupTask, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.followupsTable),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", taskID, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var item followupItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling task %s: %w", taskID, err)
	}
	return item.toDomain(), nil
}

// GetFollowupsByIDs fetches each task individually; ids with no match are
// simply omitted, per the Repository contract.
func (s *Store) GetFollowupsByIDs(ctx context.Context, taskIDs []string) ([]*domain.FollowupTask, error) {
	out := make([]*domain.FollowupTask, 0, len(taskIDs))
	for _, id := range taskIDs {
		task, err := s.GetFollowup(ctx, id)
		if err != nil {
			return nil, err
		}
		if task != nil {
			out = append(out, task)
		}
	}
	return out, nil
}

// TransitionFollowupIfStatus performs a read-mutate-conditional-write cycle:
// it loads the task, applies mutate, then writes the full item back with a
// ConditionExpression on the status the caller expected to still hold. A
// ConditionalCheckFailedException collapses to (false, nil) — the
// compare-and-set "someone else got there first" outcome, not an error.
func (s *Store) TransitionFollowupIfStatus(ctx context.Context, taskID string, expected, target domain.FollowupStatus, mutate func(*domain.FollowupTask)) (bool, error) {
	task, err := s.GetFollowup(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, followup.ErrFollowupNotFound
	}
	if task.Status != expected {
		return false, nil
	}

	mutate(task)
	task.Status = target

	av, err := attributevalue.MarshalMap(fromFollowup(task))
	if err != nil {
		return false, fmt.Errorf("marshaling task %s: %w", taskID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.followupsTable),
		Item:                av,
		ConditionExpression: aws.String("#status = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		return false, fmt.Errorf("transitioning task %s: %w", taskID, err)
	}
	return true, nil
}

// UpdateFollowup persists task verbatim, unconditionally (used by the
// shift repair operation, which is not a status transition).
func (s *Store) UpdateFollowup(ctx context.Context, task *domain.FollowupTask) error {
	av, err := attributevalue.MarshalMap(fromFollowup(task))
	if err != nil {
		return fmt.Errorf("marshaling task %s: %w", task.TaskID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.followupsTable),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("updating task %s: %w", task.TaskID, err)
	}
	return nil
}
