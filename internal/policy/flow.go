package policy

import (
	"fmt"

	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/secrets"
)

// FlowDecision is the outcome of a FlowController predicate: allow the
// action outright, deny it with a reason, or require interactive
// confirmation before proceeding.
type FlowDecision struct {
	Outcome FlowOutcome
	Reason  string
	Prompt  string
}

type FlowOutcome string

const (
	FlowAllow   FlowOutcome = "allow"
	FlowDeny    FlowOutcome = "deny"
	FlowConfirm FlowOutcome = "confirm"
)

// Destination identifies what a piece of content is about to flow to, so
// FlowController rules can discriminate network egress from a semantic
// memory write.
type Destination string

const (
	DestinationNetwork       Destination = "network"
	DestinationSemanticMemory Destination = "semantic_memory"
)

// FlowController is the single predicate any network-capable or
// memory-writing tool may ask before acting, per spec.md §4.4: "It is the
// only thing any network-capable tool may ask."
type FlowController struct {
	detector *secrets.Detector
}

// NewFlowController constructs a FlowController backed by detector (reused
// from the same Detector instance the ToolExecutor's output-redaction step
// uses, since patterns are meant to be compiled once per spec.md §4.4
// performance note).
func NewFlowController(detector *secrets.Detector) *FlowController {
	return &FlowController{detector: detector}
}

// CanEgress implements can_egress(content, label, destination) for
// DestinationNetwork: FC-1, content labeled data_class=secret (or
// containing a definite/probable secret finding) must not leave the
// process via any network/send tool.
func (f *FlowController) CanEgress(content string, label labels.ContentLabel, destination Destination) FlowDecision {
	switch destination {
	case DestinationNetwork:
		return f.checkSecretEgress(content, label)
	case DestinationSemanticMemory:
		return f.checkMemoryWrite(label)
	default:
		return FlowDecision{Outcome: FlowDeny, Reason: fmt.Sprintf("unknown destination %q", destination)}
	}
}

// checkSecretEgress implements FC-1: label-based and content-scan-based
// secret egress is blocked or requires confirmation before the payload
// reaches any network/send tool.
func (f *FlowController) checkSecretEgress(content string, label labels.ContentLabel) FlowDecision {
	if label.Class == labels.Secret {
		return FlowDecision{Outcome: FlowDeny, Reason: "content labeled secret may not egress"}
	}

	result := f.detector.Scan(content)
	if result.DefiniteCount > 0 {
		return FlowDecision{Outcome: FlowDeny, Reason: "outbound payload contains a definite secret match"}
	}
	if result.ProbableCount > 0 {
		return FlowDecision{
			Outcome: FlowConfirm,
			Prompt:  "This outbound message may contain a credential. Send anyway?",
		}
	}
	return FlowDecision{Outcome: FlowAllow}
}

// checkMemoryWrite implements FC-2: writing trust=untrusted content to
// semantic memory requires user confirmation. Confirmation is expected to
// call PromoteForMemory to actually raise the label before the write is
// retried.
func (f *FlowController) checkMemoryWrite(label labels.ContentLabel) FlowDecision {
	if label.Trust == labels.Untrusted {
		return FlowDecision{
			Outcome: FlowConfirm,
			Prompt:  "This content originated from an untrusted source. Save it to memory anyway?",
		}
	}
	return FlowDecision{Outcome: FlowAllow}
}

// PromoteForMemory implements the confirmation side-effect of FC-2:
// confirming a memory write of untrusted content promotes its trust label
// to "user" before the write proceeds.
func PromoteForMemory(label labels.ContentLabel) labels.ContentLabel {
	return label.PromoteTrust(labels.User)
}

const dataMarkerPrefix = "<<<TOOL_OUTPUT_DATA"
const dataMarkerSuffix = "TOOL_OUTPUT_DATA>>>"

// WrapAsData implements FC-3: tool outputs are wrapped with an unambiguous
// DATA marker before being placed in provider history, so the model cannot
// be instructed by them. The markers are deliberately unlikely to appear in
// ordinary tool output and are never stripped before being shown to the
// model — only the orchestrator's own prompt construction recognizes them.
func WrapAsData(toolName string, output string) string {
	return fmt.Sprintf("%s:%s>>>\n%s\n%s", dataMarkerPrefix, toolName, output, dataMarkerSuffix)
}
