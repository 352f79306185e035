// Package dynamostore implements followup.Repository against Amazon
// DynamoDB: two tables (email_drafts, email_followups) plus the GSIs the
// query patterns in internal/service/followup require.
package dynamostore
