// Package followup owns the business logic of the followup engine: the
// scheduler, the cancellation policy, the due-task processor, and the
// operator-driven repair operations.
//
// The service depends only on the Repository interface defined in this
// package and on the CRMClient/ComposerClient collaborator interfaces; it
// never imports internal/api or a concrete repository implementation.
// Concrete adapters live in internal/repository/dynamostore,
// internal/crmclient, and internal/composerclient.
package followup
