package followup

import (
	"github.com/rs/zerolog"
	"github.com/wardrockay/followup-engine/internal/resilience"
)

// Service bundles the scheduler, canceller, processor, and repairer behind
// one handle, the shape internal/api's handlers depend on.
type Service struct {
	*Scheduler
	*Canceller
	*Processor
	*Repairer
}

// New wires a Service from a repository and the CRM/composer collaborators.
// breakers should be the same resilience.Registry the health handler reads
// for its dependency snapshot.
func New(repo Repository, crm CRMClient, composer ComposerClient, breakers *resilience.Registry, logger zerolog.Logger) *Service {
	crmEnv := resilience.NewEnvelope(resilience.CRMDependencyConfig(), breakers)
	composerEnv := resilience.NewEnvelope(resilience.ComposerDependencyConfig(), breakers)

	return &Service{
		Scheduler: NewScheduler(repo),
		Canceller: NewCanceller(repo),
		Processor: NewProcessor(repo, crm, composer, crmEnv, composerEnv, logger),
		Repairer:  NewRepairer(repo),
	}
}
