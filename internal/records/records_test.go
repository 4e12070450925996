package records_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/issue"
	"github.com/manifold-platform/manifoldmcp/internal/records"
)

func sampleEntity() map[string]any {
	return map[string]any{
		"id": "entity.job",
		"fields": []any{
			map[string]any{"id": "title", "type": "string", "required": true},
			map[string]any{"id": "priority", "type": "enum", "options": []any{
				map[string]any{"value": "low", "label": "Low"},
				map[string]any{"value": "high", "label": "High"},
			}, "default": "low"},
			map[string]any{"id": "due_on", "type": "date"},
			map[string]any{"id": "assignee_id", "type": "uuid"},
			map[string]any{"id": "escalation_reason", "type": "string", "required_when": map[string]any{
				"op": "eq", "field": "priority", "value": "high",
			}},
		},
	}
}

func TestValidateRecordPayloadRejectsUnknownField(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{"title": "x", "bogus": 1}, true, nil)
	assertHasCode(t, errs, "UNKNOWN_FIELD")
}

func TestValidateRecordPayloadAppliesDefaultOnCreate(t *testing.T) {
	_, data := records.ValidateRecordPayload(sampleEntity(), map[string]any{"title": "x"}, true, nil)
	assert.Equal(t, "low", data["priority"])
}

func TestValidateRecordPayloadRequiredFieldMissing(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{}, true, nil)
	assertHasCode(t, errs, "REQUIRED_FIELD")
}

func TestValidateRecordPayloadRequiredWhenTriggers(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{
		"title": "x", "priority": "high",
	}, true, nil)
	assertHasCode(t, errs, "REQUIRED_FIELD")
}

func TestValidateRecordPayloadRequiredWhenSatisfied(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{
		"title": "x", "priority": "high", "escalation_reason": "overdue",
	}, true, nil)
	assertNoCode(t, errs, "REQUIRED_FIELD")
}

func TestEvalSimpleConditionErrorsOnTypeMismatch(t *testing.T) {
	cond := map[string]any{"op": "gt", "field": "priority", "value": 3}
	_, err := records.EvalSimpleCondition(cond, records.SimpleConditionCtx{Record: map[string]any{"priority": "high"}})
	assert.Error(t, err)
}

func TestValidateRecordPayloadRequiredWhenFailsClosedOnError(t *testing.T) {
	entity := map[string]any{
		"id": "entity.job",
		"fields": []any{
			map[string]any{"id": "escalation_reason", "type": "string", "required_when": map[string]any{
				"op": "gt", "field": "priority", "value": 3,
			}},
			map[string]any{"id": "priority", "type": "string"},
		},
	}
	errs, _ := records.ValidateRecordPayload(entity, map[string]any{"priority": "high"}, true, nil)
	assertHasCode(t, errs, "REQUIRED_FIELD")
}

func TestValidateRecordPayloadTypeChecks(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{
		"title": "x", "due_on": "not-a-date", "assignee_id": "not-a-uuid",
	}, false, nil)
	assertHasCode(t, errs, "INVALID_DATE")
	assertHasCode(t, errs, "TYPE_MISMATCH")
}

func TestValidateRecordPayloadEnumRejectsUnknownValue(t *testing.T) {
	errs, _ := records.ValidateRecordPayload(sampleEntity(), map[string]any{
		"title": "x", "priority": "urgent",
	}, false, nil)
	assertHasCode(t, errs, "INVALID_ENUM")
}

func TestValidateRecordPayloadWorkflowStatusCrossCheck(t *testing.T) {
	workflow := map[string]any{
		"status_field": "status",
		"states": []any{
			map[string]any{"id": "open"},
			map[string]any{"id": "closed", "required_fields": []any{"close_reason"}},
		},
	}
	entity := map[string]any{
		"fields": []any{
			map[string]any{"id": "title", "type": "string"},
			map[string]any{"id": "status", "type": "string"},
			map[string]any{"id": "close_reason", "type": "string"},
		},
	}
	errs, _ := records.ValidateRecordPayload(entity, map[string]any{
		"title": "x", "status": "closed",
	}, false, workflow)
	assertHasCode(t, errs, "REQUIRED_FIELD")

	errs, _ = records.ValidateRecordPayload(entity, map[string]any{
		"title": "x", "status": "bogus",
	}, false, workflow)
	assertHasCode(t, errs, "INVALID_STATUS")
}

func TestMatchEntityIDTogglesPrefix(t *testing.T) {
	assert.True(t, records.MatchEntityID("job", "entity.job"))
	assert.True(t, records.MatchEntityID("entity.job", "job"))
	assert.True(t, records.MatchEntityID("entity.job", "entity.job"))
	assert.False(t, records.MatchEntityID("entity.job", "entity.task"))
}

type fakeLookup struct {
	modules   [][2]string
	snapshots map[string]map[string]any
}

func (f fakeLookup) EnabledModules() [][2]string { return f.modules }
func (f fakeLookup) Snapshot(moduleID, hash string) (map[string]any, error) {
	return f.snapshots[moduleID+"/"+hash], nil
}

func TestValidateLookupFieldsResolvesAcrossModules(t *testing.T) {
	targetManifest := map[string]any{
		"entities": []any{
			map[string]any{"id": "entity.customer", "fields": []any{
				map[string]any{"id": "name", "type": "string"},
			}},
		},
	}
	lookup := fakeLookup{
		modules: [][2]string{{"crm", "sha256:abc"}},
		snapshots: map[string]map[string]any{
			"crm/sha256:abc": targetManifest,
		},
	}
	entity := map[string]any{
		"fields": []any{
			map[string]any{"id": "customer_id", "type": "lookup", "entity": "entity.customer", "display_field": "name"},
		},
	}
	errs := records.ValidateLookupFields(entity, lookup)
	assert.Empty(t, errs)
}

func TestValidateLookupFieldsFlagsUnknownTarget(t *testing.T) {
	lookup := fakeLookup{modules: nil, snapshots: map[string]map[string]any{}}
	entity := map[string]any{
		"fields": []any{
			map[string]any{"id": "customer_id", "type": "lookup", "entity": "entity.customer", "display_field": "name"},
		},
	}
	errs := records.ValidateLookupFields(entity, lookup)
	assertHasCode(t, errs, "LOOKUP_TARGET_UNKNOWN")
}

func assertHasCode(t *testing.T, errs issue.List, code string) {
	t.Helper()
	for _, e := range errs {
		if e.Code == code {
			return
		}
	}
	require.Failf(t, "code not found", "expected %s in %+v", code, errs)
}

func assertNoCode(t *testing.T, errs issue.List, code string) {
	t.Helper()
	for _, e := range errs {
		if e.Code == code {
			require.Failf(t, "unexpected code", "did not expect %s in %+v", code, errs)
		}
	}
}
