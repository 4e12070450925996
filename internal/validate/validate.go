// Package validate implements structural validation of a manifest document:
// allowed top-level keys, entity/field shape, view/page/block shape with
// manifest-version gating, workflow shape, and condition expression shape.
// It never panics on malformed input; everything becomes an accumulated
// Issue, mirroring the accumulate-don't-raise style used across the
// manifest lifecycle packages.
package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/manifold-platform/manifoldmcp/internal/issue"
)

var allowedFieldTypes = map[string]bool{
	"string": true, "text": true, "number": true, "bool": true, "date": true,
	"datetime": true, "enum": true, "uuid": true, "lookup": true, "tags": true,
	"attachments": true,
}

var allowedV1TopKeys = map[string]bool{
	"manifest_version": true, "module": true, "entities": true, "views": true,
	"relations": true, "workflows": true, "actions": true, "triggers": true,
	"queries": true, "interfaces": true, "app": true, "pages": true, "modals": true,
}

var allowedV1BlockKeys = map[string]bool{
	"kind": true, "target": true, "content": true, "items": true, "columns": true,
	"gap": true, "tabs": true, "style": true, "default_tab": true, "text": true,
	"entity_id": true, "record_ref": true, "variant": true, "title": true,
	"actions": true, "align": true, "field_id": true, "mode": true,
	"record_id_query": true, "modes": true, "default_mode": true,
	"default_group_by": true, "default_filter_id": true, "record_domain": true,
	"view": true, "create_defaults": true, "create_modal": true,
}

var allowedV1ActionKinds = map[string]bool{
	"navigate": true, "open_form": true, "refresh": true, "create_record": true,
	"update_record": true, "bulk_update": true,
}

var allowedV1TriggerEvents = map[string]bool{
	"record.created": true, "record.updated": true, "action.clicked": true,
	"workflow.status_changed": true,
}

var allowedV1StackKeys = map[string]bool{"kind": true, "gap": true, "content": true}
var allowedV1GridKeys = map[string]bool{"kind": true, "columns": true, "gap": true, "items": true}
var allowedV1GridItemKeys = map[string]bool{"span": true, "content": true}
var allowedV1TabsKeys = map[string]bool{"kind": true, "style": true, "tabs": true, "default_tab": true}
var allowedV1TabKeys = map[string]bool{"id": true, "label": true, "content": true}
var allowedV1TextKeys = map[string]bool{"kind": true, "text": true}
var allowedV1ChatterKeys = map[string]bool{"kind": true, "entity_id": true, "record_ref": true}
var allowedV1ContainerKeys = map[string]bool{"kind": true, "variant": true, "title": true, "content": true}
var allowedV1ToolbarKeys = map[string]bool{"kind": true, "align": true, "actions": true}
var allowedV1StatusbarKeys = map[string]bool{"kind": true, "entity_id": true, "record_ref": true, "field_id": true, "mode": true}
var allowedV1RecordKeys = map[string]bool{"kind": true, "entity_id": true, "record_id_query": true, "content": true}
var allowedV1ViewModesKeys = map[string]bool{"kind": true, "entity_id": true, "modes": true, "default_mode": true, "default_group_by": true, "default_filter_id": true, "record_domain": true}
var allowedV1RelatedListKeys = map[string]bool{"kind": true, "entity_id": true, "target": true, "view": true, "record_domain": true, "create_defaults": true, "create_modal": true}
var allowedV1ViewModeItemKeys = map[string]bool{"mode": true, "target": true, "default_group_by": true}
var allowedV1ActionKeys = map[string]bool{
	"id": true, "kind": true, "label": true, "target": true, "entity_id": true,
	"defaults": true, "patch": true, "enabled_when": true, "visible_when": true,
	"confirm": true, "modal_id": true,
}
var allowedV1TriggerKeys = map[string]bool{"id": true, "event": true, "entity_id": true, "action_id": true, "status_field": true}
var allowedV1ViewHeaderKeys = map[string]bool{
	"title_field": true, "primary_actions": true, "secondary_actions": true,
	"search": true, "filters": true, "bulk_actions": true, "save_mode": true,
	"open_record_target": true, "auto_save": true, "auto_save_debounce_ms": true,
	"statusbar": true, "tabs": true,
}
var allowedV1ViewHeaderActionKeys = map[string]bool{
	"action_id": true, "kind": true, "label": true, "target": true,
	"enabled_when": true, "visible_when": true, "confirm": true, "modal_id": true,
}
var allowedV1ModalKeys = map[string]bool{"id": true, "title": true, "description": true, "entity_id": true, "fields": true, "defaults": true, "actions": true}
var allowedV1ModalActionKeys = map[string]bool{
	"action_id": true, "kind": true, "label": true, "target": true, "entity_id": true,
	"defaults": true, "patch": true, "enabled_when": true, "visible_when": true,
	"confirm": true, "close_on_success": true, "variant": true,
}
var allowedConditionOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"in": true, "contains": true, "exists": true, "and": true, "or": true, "not": true,
}
var allowedConditionKeys = map[string]bool{"op": true, "field": true, "value": true, "left": true, "right": true, "conditions": true, "condition": true}

const maxBlockDepth = 6
const maxConditionDepth = 6

func get(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	return m[key]
}

func rejectUnknownKeys(errs *issue.List, obj map[string]any, allowed map[string]bool, path string) {
	if obj == nil {
		return
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !allowed[k] {
			*errs = append(*errs, issue.At("MANIFEST_UNKNOWN_KEY", fmt.Sprintf("Unknown key: %s", k), path+"."+k))
		}
	}
}

func fieldIDs(entity map[string]any) map[string]bool {
	out := map[string]bool{}
	fields, _ := get(entity, "fields").([]any)
	for _, raw := range fields {
		if fm, ok := raw.(map[string]any); ok {
			if id, ok := fm["id"].(string); ok {
				out[id] = true
			}
		}
	}
	return out
}

// parseTarget splits a "page:<id>" or "view:<id>" reference.
func parseTarget(target string) (kind, id string, ok bool) {
	if strings.HasPrefix(target, "page:") {
		return "page", target[5:], true
	}
	if strings.HasPrefix(target, "view:") {
		return "view", target[5:], true
	}
	return "", "", false
}

func parseViewTarget(target string) (string, bool) {
	if strings.HasPrefix(target, "page:") {
		return "", false
	}
	if strings.HasPrefix(target, "view:") {
		return target[5:], true
	}
	return target, true
}

func versionMajorMinor(version string) (float64, bool) {
	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return 0, false
	}
	f, err := strconv.ParseFloat(parts[0]+"."+parts[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isAtLeast(version string, min float64, prefix string) bool {
	if f, ok := versionMajorMinor(version); ok {
		return f >= min
	}
	return strings.HasPrefix(version, prefix)
}

func isV11(version string) bool { return isAtLeast(version, 1.1, "1.1") }
func isV12(version string) bool { return isAtLeast(version, 1.2, "1.2") }
func isV13(version string) bool { return isAtLeast(version, 1.3, "1.3") }

func validateConditionOperand(value any, path string, errs *issue.List) {
	m, ok := value.(map[string]any)
	if !ok {
		return
	}
	if len(m) != 1 {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_OPERAND_INVALID", "operand must be a ref object", path))
		return
	}
	if _, hasRef := m["ref"]; !hasRef {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_OPERAND_INVALID", "operand must be a ref object", path))
		return
	}
	if _, ok := m["ref"].(string); !ok {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_REF_INVALID", "ref must be a string", path+".ref"))
	}
}

func validateCondition(cond any, path string, errs *issue.List, depth int) {
	if depth > maxConditionDepth {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_DEPTH", "condition is nested too deeply", path))
		return
	}
	m, ok := cond.(map[string]any)
	if !ok {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_INVALID", "condition must be an object", path))
		return
	}
	rejectUnknownKeys(errs, m, allowedConditionKeys, path)
	op, _ := m["op"].(string)
	if !allowedConditionOps[op] {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_OP_INVALID", "condition.op must be allowlisted", path+".op"))
		return
	}
	if op == "and" || op == "or" {
		items, ok := m["conditions"].([]any)
		if !ok || len(items) == 0 {
			*errs = append(*errs, issue.At("MANIFEST_CONDITION_LIST_INVALID", "conditions must be a non-empty list", path+".conditions"))
			return
		}
		for idx, item := range items {
			validateCondition(item, fmt.Sprintf("%s.conditions[%d]", path, idx), errs, depth+1)
		}
		return
	}
	if op == "not" {
		inner, ok := m["condition"]
		if !ok || inner == nil {
			*errs = append(*errs, issue.At("MANIFEST_CONDITION_INVALID", "not requires condition", path+".condition"))
			return
		}
		validateCondition(inner, path+".condition", errs, depth+1)
		return
	}

	_, hasLeft := m["left"]
	_, hasRight := m["right"]
	if hasLeft || hasRight {
		if !hasLeft || !hasRight {
			*errs = append(*errs, issue.At("MANIFEST_CONDITION_INVALID", "left and right are required together", path))
			return
		}
		validateConditionOperand(m["left"], path+".left", errs)
		validateConditionOperand(m["right"], path+".right", errs)
		return
	}

	field, _ := m["field"].(string)
	if field == "" {
		*errs = append(*errs, issue.At("MANIFEST_CONDITION_FIELD_INVALID", "condition.field must be a string", path+".field"))
	}
	if op != "exists" {
		if _, hasValue := m["value"]; !hasValue {
			*errs = append(*errs, issue.At("MANIFEST_CONDITION_VALUE_INVALID", "condition.value is required", path+".value"))
		}
	}
}

// validateBlocks recursively validates a page's content tree.
func validateBlocks(blocks any, path string, viewIDs map[string]bool, entityByID map[string]map[string]any, actionByID map[string]map[string]any, errs *issue.List, allowLayout, allowChatter, allowV13 bool, recordEntity string, depth int) {
	if depth > maxBlockDepth {
		*errs = append(*errs, issue.At("MANIFEST_BLOCK_DEPTH", "content blocks are nested too deeply", path))
		return
	}
	list, ok := blocks.([]any)
	if !ok {
		*errs = append(*errs, issue.At("MANIFEST_PAGE_CONTENT_INVALID", "page.content must be a list", path))
		return
	}
	for bidx, raw := range list {
		bpath := fmt.Sprintf("%s[%d]", path, bidx)
		block, ok := raw.(map[string]any)
		if !ok {
			*errs = append(*errs, issue.At("MANIFEST_BLOCK_INVALID", "page block must be an object", bpath))
			continue
		}
		rejectUnknownKeys(errs, block, allowedV1BlockKeys, bpath)
		kind, _ := block["kind"].(string)

		switch kind {
		case "view":
			target, _ := block["target"].(string)
			targetID, ok := parseViewTarget(target)
			if !ok || targetID == "" {
				*errs = append(*errs, issue.At("MANIFEST_TARGET_INVALID", "block target must be a view id or view:<id>", bpath+".target"))
				continue
			}
			if !viewIDs[targetID] {
				*errs = append(*errs, issue.At("MANIFEST_TARGET_UNKNOWN", "page block view not found", bpath+".target"))
			}
		case "stack":
			if !allowLayout {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "stack blocks require manifest_version >= 1.1", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1StackKeys, bpath)
			validateBlocks(block["content"], bpath+".content", viewIDs, entityByID, actionByID, errs, allowLayout, allowChatter, allowV13, recordEntity, depth+1)
		case "grid":
			if !allowLayout {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "grid blocks require manifest_version >= 1.1", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1GridKeys, bpath)
			if cols, ok := block["columns"].(float64); !ok || cols != 12 {
				*errs = append(*errs, issue.At("MANIFEST_GRID_COLUMNS_INVALID", "grid.columns must be 12", bpath+".columns"))
			}
			items, ok := block["items"].([]any)
			if !ok || len(items) == 0 {
				*errs = append(*errs, issue.At("MANIFEST_GRID_ITEMS_INVALID", "grid.items must be a non-empty list", bpath+".items"))
				continue
			}
			for iidx, rawItem := range items {
				ipath := fmt.Sprintf("%s.items[%d]", bpath, iidx)
				item, ok := rawItem.(map[string]any)
				if !ok {
					*errs = append(*errs, issue.At("MANIFEST_GRID_ITEM_INVALID", "grid item must be an object", ipath))
					continue
				}
				rejectUnknownKeys(errs, item, allowedV1GridItemKeys, ipath)
				span, ok := item["span"].(float64)
				if !ok || span < 1 || span > 12 {
					*errs = append(*errs, issue.At("MANIFEST_GRID_SPAN_INVALID", "grid item span must be 1..12", ipath+".span"))
				}
				validateBlocks(item["content"], ipath+".content", viewIDs, entityByID, actionByID, errs, allowLayout, allowChatter, allowV13, recordEntity, depth+1)
			}
		case "tabs":
			if !allowLayout {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "tabs blocks require manifest_version >= 1.1", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1TabsKeys, bpath)
			tabs, ok := block["tabs"].([]any)
			if !ok || len(tabs) == 0 {
				*errs = append(*errs, issue.At("MANIFEST_TABS_INVALID", "tabs must be a non-empty list", bpath+".tabs"))
				continue
			}
			var tabIDs []string
			seen := map[string]bool{}
			dup := false
			for tidx, rawTab := range tabs {
				tpath := fmt.Sprintf("%s.tabs[%d]", bpath, tidx)
				tab, ok := rawTab.(map[string]any)
				if !ok {
					*errs = append(*errs, issue.At("MANIFEST_TAB_INVALID", "tab must be an object", tpath))
					continue
				}
				rejectUnknownKeys(errs, tab, allowedV1TabKeys, tpath)
				tid, _ := tab["id"].(string)
				if tid == "" {
					*errs = append(*errs, issue.At("MANIFEST_TAB_ID_INVALID", "tab.id is required", tpath+".id"))
				} else {
					tabIDs = append(tabIDs, tid)
					if seen[tid] {
						dup = true
					}
					seen[tid] = true
				}
				validateBlocks(tab["content"], tpath+".content", viewIDs, entityByID, actionByID, errs, allowLayout, allowChatter, allowV13, recordEntity, depth+1)
			}
			if dup {
				*errs = append(*errs, issue.At("MANIFEST_TAB_ID_DUPLICATE", "tab ids must be unique", bpath+".tabs"))
			}
			if defaultTab, ok := block["default_tab"].(string); ok && defaultTab != "" {
				found := false
				for _, id := range tabIDs {
					if id == defaultTab {
						found = true
						break
					}
				}
				if !found {
					*errs = append(*errs, issue.At("MANIFEST_TAB_DEFAULT_INVALID", "default_tab must match a tab id", bpath+".default_tab"))
				}
			}
		case "text":
			if !allowLayout {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "text blocks require manifest_version >= 1.1", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1TextKeys, bpath)
			if _, ok := block["text"].(string); !ok {
				*errs = append(*errs, issue.At("MANIFEST_TEXT_INVALID", "text block requires string text", bpath+".text"))
			}
		case "container":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "container blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1ContainerKeys, bpath)
			validateBlocks(block["content"], bpath+".content", viewIDs, entityByID, actionByID, errs, allowLayout, allowChatter, allowV13, recordEntity, depth+1)
		case "toolbar":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "toolbar blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1ToolbarKeys, bpath)
			actions, ok := block["actions"].([]any)
			if !ok || len(actions) == 0 {
				*errs = append(*errs, issue.At("MANIFEST_TOOLBAR_ACTIONS_INVALID", "toolbar.actions must be a non-empty list", bpath+".actions"))
			} else {
				for aidx, rawAction := range actions {
					apath := fmt.Sprintf("%s.actions[%d]", bpath, aidx)
					action, ok := rawAction.(map[string]any)
					if !ok {
						*errs = append(*errs, issue.At("MANIFEST_TOOLBAR_ACTION_INVALID", "action must be object", apath))
						continue
					}
					actionID, _ := action["action_id"].(string)
					if actionID == "" || actionByID[actionID] == nil {
						*errs = append(*errs, issue.At("MANIFEST_TOOLBAR_ACTION_INVALID", "action_id not found", apath+".action_id"))
					}
				}
			}
		case "statusbar":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "statusbar blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1StatusbarKeys, bpath)
			entityID, _ := block["entity_id"].(string)
			if entityID == "" {
				entityID = recordEntity
			}
			recordRef, _ := block["record_ref"].(string)
			if recordRef == "" && recordEntity != "" {
				recordRef = "$record.id"
			}
			fieldID, _ := block["field_id"].(string)
			if entityID == "" {
				*errs = append(*errs, issue.At("MANIFEST_STATUSBAR_ENTITY_INVALID", "statusbar.entity_id is required", bpath+".entity_id"))
			}
			if recordRef == "" {
				*errs = append(*errs, issue.At("MANIFEST_STATUSBAR_RECORD_REF_INVALID", "statusbar.record_ref is required", bpath+".record_ref"))
			}
			if fieldID == "" {
				*errs = append(*errs, issue.At("MANIFEST_STATUSBAR_FIELD_INVALID", "statusbar.field_id is required", bpath+".field_id"))
			} else if entityID != "" {
				entityObj := entityByID[entityID]
				if entityObj == nil {
					entityObj = entityByID["entity."+entityID]
				}
				if entityObj != nil {
					if !fieldIDs(entityObj)[fieldID] {
						*errs = append(*errs, issue.At("MANIFEST_STATUSBAR_FIELD_INVALID", "statusbar.field_id not found on entity", bpath+".field_id"))
					}
				}
			}
		case "record":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "record blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1RecordKeys, bpath)
			entityID, _ := block["entity_id"].(string)
			if entityID == "" {
				*errs = append(*errs, issue.At("MANIFEST_RECORD_ENTITY_INVALID", "record.entity_id is required", bpath+".entity_id"))
			}
			if q, _ := block["record_id_query"].(string); q == "" {
				*errs = append(*errs, issue.At("MANIFEST_RECORD_QUERY_INVALID", "record.record_id_query is required", bpath+".record_id_query"))
			}
			validateBlocks(block["content"], bpath+".content", viewIDs, entityByID, actionByID, errs, allowLayout, allowChatter, allowV13, entityID, depth+1)
		case "view_modes":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "view_modes blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1ViewModesKeys, bpath)
			entityID, _ := block["entity_id"].(string)
			if entityID == "" {
				*errs = append(*errs, issue.At("MANIFEST_VIEW_MODES_ENTITY_INVALID", "view_modes.entity_id is required", bpath+".entity_id"))
			} else if entityByID[entityID] == nil && entityByID["entity."+entityID] == nil {
				*errs = append(*errs, issue.At("MANIFEST_VIEW_MODES_ENTITY_UNKNOWN", "view_modes.entity_id not found", bpath+".entity_id"))
			}
			modes, ok := block["modes"].([]any)
			if !ok || len(modes) == 0 {
				*errs = append(*errs, issue.At("MANIFEST_VIEW_MODES_INVALID", "view_modes.modes must be a non-empty list", bpath+".modes"))
				continue
			}
			allowedModes := map[string]bool{"list": true, "kanban": true, "graph": true, "pivot": true, "calendar": true}
			var modeIDs []string
			for midx, rawMode := range modes {
				mpath := fmt.Sprintf("%s.modes[%d]", bpath, midx)
				mode, ok := rawMode.(map[string]any)
				if !ok {
					*errs = append(*errs, issue.At("MANIFEST_VIEW_MODE_INVALID", "view mode must be object", mpath))
					continue
				}
				rejectUnknownKeys(errs, mode, allowedV1ViewModeItemKeys, mpath)
				modeID, _ := mode["mode"].(string)
				if !allowedModes[modeID] {
					*errs = append(*errs, issue.At("MANIFEST_VIEW_MODE_INVALID", "mode must be list|kanban|graph|pivot|calendar", mpath+".mode"))
				} else {
					modeIDs = append(modeIDs, modeID)
				}
				target, _ := mode["target"].(string)
				targetID, ok := parseViewTarget(target)
				if !ok || targetID == "" {
					*errs = append(*errs, issue.At("MANIFEST_TARGET_INVALID", "view_modes target must be a view id or view:<id>", mpath+".target"))
				} else if !viewIDs[targetID] {
					*errs = append(*errs, issue.At("MANIFEST_TARGET_UNKNOWN", "view_modes target view not found", mpath+".target"))
				}
			}
			if defaultMode, ok := block["default_mode"].(string); ok && defaultMode != "" {
				found := false
				for _, id := range modeIDs {
					if id == defaultMode {
						found = true
						break
					}
				}
				if !found {
					*errs = append(*errs, issue.At("MANIFEST_VIEW_MODES_INVALID", "default_mode must match modes[].mode", bpath+".default_mode"))
				}
			}
			if domain, ok := block["record_domain"]; ok && domain != nil {
				validateCondition(domain, bpath+".record_domain", errs, 0)
			}
		case "related_list":
			if !allowV13 {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "related_list blocks require manifest_version >= 1.3", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1RelatedListKeys, bpath)
			entityID, _ := block["entity_id"].(string)
			if entityID == "" {
				*errs = append(*errs, issue.At("MANIFEST_RELATED_LIST_ENTITY_INVALID", "related_list.entity_id is required", bpath+".entity_id"))
			} else if entityByID[entityID] == nil && entityByID["entity."+entityID] == nil {
				*errs = append(*errs, issue.At("MANIFEST_RELATED_LIST_ENTITY_UNKNOWN", "related_list.entity_id not found", bpath+".entity_id"))
			}
			target, _ := block["target"].(string)
			if target == "" {
				target, _ = block["view"].(string)
			}
			targetID, ok := parseViewTarget(target)
			if !ok || targetID == "" {
				*errs = append(*errs, issue.At("MANIFEST_TARGET_INVALID", "related_list target must be a view id or view:<id>", bpath+".target"))
			} else if !viewIDs[targetID] {
				*errs = append(*errs, issue.At("MANIFEST_TARGET_UNKNOWN", "related_list target view not found", bpath+".target"))
			}
			if domain, ok := block["record_domain"]; ok && domain != nil {
				validateCondition(domain, bpath+".record_domain", errs, 0)
			}
		case "chatter":
			if !allowChatter {
				*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "chatter blocks require manifest_version >= 1.2", bpath+".kind"))
				continue
			}
			rejectUnknownKeys(errs, block, allowedV1ChatterKeys, bpath)
			entityID, _ := block["entity_id"].(string)
			if entityID == "" {
				entityID = recordEntity
			}
			recordRef, _ := block["record_ref"].(string)
			if recordRef == "" && recordEntity != "" {
				recordRef = "$record.id"
			}
			if entityID == "" {
				*errs = append(*errs, issue.At("MANIFEST_CHATTER_ENTITY_INVALID", "chatter.entity_id is required", bpath+".entity_id"))
			}
			if recordRef == "" {
				*errs = append(*errs, issue.At("MANIFEST_CHATTER_RECORD_REF_INVALID", "chatter.record_ref is required", bpath+".record_ref"))
			}
		default:
			*errs = append(*errs, issue.At("MANIFEST_BLOCK_KIND_INVALID", "unsupported block kind", bpath+".kind"))
		}
	}
}

func defaultTypeValid(fieldType string, value any) bool {
	switch fieldType {
	case "string", "text":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "bool", "boolean":
		_, ok := value.(bool)
		return ok
	case "date":
		_, ok := value.(string)
		return ok
	case "enum":
		switch value.(type) {
		case string, float64, bool:
			return true
		}
		return false
	default:
		return false
	}
}

func enumOptionsObjectShape(options []any) bool {
	if len(options) == 0 {
		return false
	}
	for _, raw := range options {
		opt, ok := raw.(map[string]any)
		if !ok {
			return false
		}
		if _, hasValue := opt["value"]; !hasValue {
			return false
		}
		if _, hasLabel := opt["label"]; !hasLabel {
			return false
		}
	}
	return true
}

// Manifest validates manifest against the structural rules, cross-checking
// module.id against expectedModuleID when non-empty. It returns accumulated
// errors and warnings; it never errors out of the function itself.
func Manifest(manifest map[string]any, expectedModuleID string) (issue.List, issue.List) {
	var errs issue.List
	var warnings issue.List

	if manifest == nil {
		errs = append(errs, issue.At("MANIFEST_INVALID", "manifest must be an object", ""))
		return errs, warnings
	}

	module, _ := manifest["module"].(map[string]any)
	moduleID, _ := get(module, "id").(string)
	manifestVersion, ok := manifest["manifest_version"].(string)
	if !ok {
		if manifest["manifest_version"] != nil {
			errs = append(errs, issue.At("MANIFEST_VERSION_INVALID", "manifest_version must be a string", "manifest_version"))
		}
		manifestVersion = "0.x"
	}
	isV1 := strings.HasPrefix(manifestVersion, "1")
	isV12Val := isV12(manifestVersion)
	isV13Val := isV13(manifestVersion)
	isV11Val := isV11(manifestVersion)

	if module == nil {
		errs = append(errs, issue.At("MANIFEST_MODULE_MISSING", "module section is required", "module"))
	}
	if moduleID == "" {
		errs = append(errs, issue.At("MANIFEST_MODULE_ID_INVALID", "module.id is required", "module.id"))
	}
	if expectedModuleID != "" && moduleID != expectedModuleID {
		errs = append(errs, issue.WithDetail("MANIFEST_MODULE_ID_MISMATCH", "module.id does not match target module_id", "module.id",
			map[string]any{"expected": expectedModuleID, "actual": moduleID}))
	}

	if !isV1 {
		if _, hasApp := manifest["app"]; hasApp {
			errs = append(errs, issue.At("MANIFEST_VERSION_REQUIRED", "manifest_version is required for app/pages definitions", "manifest_version"))
		} else if _, hasPages := manifest["pages"]; hasPages {
			errs = append(errs, issue.At("MANIFEST_VERSION_REQUIRED", "manifest_version is required for app/pages definitions", "manifest_version"))
		}
	} else {
		rejectUnknownKeys(&errs, manifest, allowedV1TopKeys, "$")
	}

	entitiesRaw, ok := manifest["entities"].([]any)
	if !ok {
		if manifest["entities"] != nil {
			errs = append(errs, issue.At("MANIFEST_ENTITIES_INVALID", "entities must be a list", "entities"))
		}
		entitiesRaw = nil
	}

	entityByID := map[string]map[string]any{}
	for i, raw := range entitiesRaw {
		path := fmt.Sprintf("entities[%d]", i)
		entity, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_ENTITY_INVALID", "entity must be an object", path))
			continue
		}
		entityID, _ := entity["id"].(string)
		if entityID == "" {
			errs = append(errs, issue.At("MANIFEST_ENTITY_ID_INVALID", "entity.id is required", path+".id"))
			continue
		}
		entityByID[entityID] = entity

		fields, ok := entity["fields"].([]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_FIELDS_INVALID", "entity.fields must be a list", path+".fields"))
			continue
		}
		for j, rawField := range fields {
			fpath := fmt.Sprintf("%s.fields[%d]", path, j)
			field, ok := rawField.(map[string]any)
			if !ok {
				errs = append(errs, issue.At("MANIFEST_FIELD_INVALID", "field must be an object", fpath))
				continue
			}
			fieldID, _ := field["id"].(string)
			if fieldID == "" {
				errs = append(errs, issue.At("MANIFEST_FIELD_ID_INVALID", "field.id is required", fpath+".id"))
			}
			ftype, _ := field["type"].(string)
			if !allowedFieldTypes[ftype] {
				allowed := make([]string, 0, len(allowedFieldTypes))
				for t := range allowedFieldTypes {
					allowed = append(allowed, t)
				}
				sort.Strings(allowed)
				errs = append(errs, issue.WithDetail("MANIFEST_FIELD_TYPE_INVALID", "field.type must be one of allowed types", fpath+".type", map[string]any{"allowed": allowed}))
			}
			required, requiredIsBool := field["required"].(bool)
			if _, has := field["required"]; has && !requiredIsBool {
				warnings = append(warnings, issue.At("MANIFEST_FIELD_REQUIRED_INVALID", "field.required should be boolean", fpath+".required"))
			}
			readonly, readonlyIsBool := field["readonly"].(bool)
			if _, has := field["readonly"]; has && !readonlyIsBool {
				warnings = append(warnings, issue.At("MANIFEST_FIELD_READONLY_INVALID", "field.readonly should be boolean", fpath+".readonly"))
			}

			if ui, has := field["ui"]; has && ui != nil {
				if !isV12Val {
					errs = append(errs, issue.At("MANIFEST_FIELD_UI_INVALID", "field.ui requires manifest_version >= 1.2", fpath+".ui"))
				} else if uiMap, ok := ui.(map[string]any); !ok {
					errs = append(errs, issue.At("MANIFEST_FIELD_UI_INVALID", "field.ui must be an object", fpath+".ui"))
				} else {
					widget, widgetIsString := uiMap["widget"].(string)
					if _, has := uiMap["widget"]; has && !widgetIsString {
						errs = append(errs, issue.At("MANIFEST_FIELD_UI_INVALID", "field.ui.widget must be a string", fpath+".ui.widget"))
					}
					if widget == "steps" && ftype != "enum" {
						errs = append(errs, issue.At("MANIFEST_FIELD_UI_INVALID", "steps widget requires enum field", fpath+".ui.widget"))
					}
				}
			}

			options, hasOptions := field["options"].([]any)
			if !hasOptions {
				options, _ = field["values"].([]any)
			}

			if def, has := field["default"]; has && def != nil {
				if !defaultTypeValid(ftype, def) {
					errs = append(errs, issue.At("MANIFEST_FIELD_DEFAULT_INVALID", "field.default must match field.type", fpath+".default"))
				}
				if ftype == "enum" && options != nil {
					allowed := map[any]bool{}
					for _, opt := range options {
						if om, ok := opt.(map[string]any); ok {
							allowed[om["value"]] = true
						} else {
							allowed[opt] = true
						}
					}
					if !allowed[def] {
						errs = append(errs, issue.At("MANIFEST_FIELD_DEFAULT_INVALID", "field.default must be one of enum options", fpath+".default"))
					}
				}
			}
			_, systemOK := field["system"].(bool)
			if required && readonly {
				if _, hasDefault := field["default"]; !hasDefault && !systemOK {
					errs = append(errs, issue.At("MANIFEST_FIELD_REQUIRED_READONLY_INVALID", "readonly required fields must define default or be system", fpath+".readonly"))
				}
			}
			if ftype == "enum" {
				if options == nil || len(options) == 0 {
					errs = append(errs, issue.At("MANIFEST_ENUM_VALUES_INVALID", "enum must define options", fpath+".options"))
				} else if !enumOptionsObjectShape(options) {
					errs = append(errs, issue.At("MANIFEST_ENUM_OPTIONS_SHAPE_INVALID", "enum.options must be objects with value and label", fpath+".options"))
				}
			}
			if ftype == "lookup" {
				target, _ := field["entity"].(string)
				display, _ := field["display_field"].(string)
				if target == "" {
					errs = append(errs, issue.At("MANIFEST_LOOKUP_TARGET_MISSING", "lookup must declare target entity", fpath+".entity"))
				}
				if display == "" {
					errs = append(errs, issue.At("MANIFEST_LOOKUP_DISPLAY_MISSING", "lookup must declare display_field", fpath+".display_field"))
				}
				if target != "" {
					targetFull := target
					if !strings.HasPrefix(target, "entity.") {
						targetFull = "entity." + target
					}
					targetEntity := entityByID[targetFull]
					if targetEntity == nil {
						targetEntity = entityByID[target]
					}
					if targetEntity == nil {
						warnings = append(warnings, issue.At("MANIFEST_LOOKUP_TARGET_EXTERNAL", "lookup target entity not found in module (external ok)", fpath+".entity"))
					} else if display != "" && !fieldIDs(targetEntity)[display] {
						errs = append(errs, issue.At("MANIFEST_LOOKUP_DISPLAY_UNKNOWN", "lookup display_field not found on target entity", fpath+".display_field"))
					}
				}
			}

			for _, condKey := range []string{"visible_when", "disabled_when", "required_when"} {
				if cond, has := field[condKey]; has && cond != nil {
					if !isV12Val {
						errs = append(errs, issue.At("MANIFEST_FIELD_CONDITION_INVALID", condKey+" requires manifest_version >= 1.2", fpath+"."+condKey))
					} else {
						validateCondition(cond, fpath+"."+condKey, &errs, 0)
					}
				}
			}
			if domain, has := field["domain"]; has && domain != nil {
				if !isV12Val {
					errs = append(errs, issue.At("MANIFEST_LOOKUP_DOMAIN_INVALID", "lookup domain requires manifest_version >= 1.2", fpath+".domain"))
				} else {
					if ftype != "lookup" {
						errs = append(errs, issue.At("MANIFEST_LOOKUP_DOMAIN_INVALID", "domain is only valid on lookup fields", fpath+".domain"))
					}
					validateCondition(domain, fpath+".domain", &errs, 0)
				}
			}
		}

		if displayField, ok := entity["display_field"].(string); ok && displayField != "" {
			if !fieldIDs(entity)[displayField] {
				errs = append(errs, issue.At("MANIFEST_DISPLAY_FIELD_INVALID", "display_field not found in fields", path+".display_field"))
			}
		}
	}

	actionByID := map[string]map[string]any{}
	if actionsRaw, ok := manifest["actions"]; ok && actionsRaw != nil {
		actions, ok := actionsRaw.([]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_ACTIONS_INVALID", "actions must be a list", "actions"))
		} else {
			for aidx, raw := range actions {
				apath := fmt.Sprintf("actions[%d]", aidx)
				action, ok := raw.(map[string]any)
				if !ok {
					errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "action must be an object", apath))
					continue
				}
				rejectUnknownKeys(&errs, action, allowedV1ActionKeys, apath)
				actionID, _ := action["id"].(string)
				if actionID == "" {
					errs = append(errs, issue.At("MANIFEST_ACTION_ID_INVALID", "action.id is required", apath+".id"))
					continue
				}
				actionByID[actionID] = action
				kind, _ := action["kind"].(string)
				if !allowedV1ActionKinds[kind] {
					errs = append(errs, issue.At("MANIFEST_ACTION_KIND_INVALID", "action.kind must be allowlisted", apath+".kind"))
				}
				if label, has := action["label"]; has {
					if _, ok := label.(string); !ok {
						errs = append(errs, issue.At("MANIFEST_ACTION_LABEL_INVALID", "action.label must be string", apath+".label"))
					}
				}
				if kind == "navigate" {
					target, _ := action["target"].(string)
					if _, _, ok := parseTarget(target); !ok {
						errs = append(errs, issue.At("MANIFEST_TARGET_INVALID", "navigate target must be page:<id> or view:<id>", apath+".target"))
					}
				}
				if kind == "open_form" {
					target, ok := action["target"].(string)
					if !ok || strings.HasPrefix(target, "page:") || strings.HasPrefix(target, "view:") {
						errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "open_form target must be a view id", apath+".target"))
					}
				}
				if kind == "create_record" || kind == "update_record" || kind == "bulk_update" {
					if entityID, _ := action["entity_id"].(string); entityID == "" {
						errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "action.entity_id is required", apath+".entity_id"))
					}
				}
				if kind == "create_record" {
					if defaults, has := action["defaults"]; has && defaults != nil {
						if _, ok := defaults.(map[string]any); !ok {
							errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "create_record defaults must be object", apath+".defaults"))
						}
					}
				}
				if kind == "update_record" || kind == "bulk_update" {
					if patch, has := action["patch"]; has && patch != nil {
						if _, ok := patch.(map[string]any); !ok {
							errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "update patch must be object", apath+".patch"))
						}
					}
				}
				if kind == "refresh" {
					if _, has := action["target"]; has {
						errs = append(errs, issue.At("MANIFEST_ACTION_INVALID", "refresh must not include target", apath+".target"))
					}
				}
				for _, condKey := range []string{"visible_when", "enabled_when"} {
					if cond, has := action[condKey]; has && cond != nil {
						if !isV12Val {
							errs = append(errs, issue.At("MANIFEST_ACTION_CONDITION_INVALID", condKey+" requires manifest_version >= 1.2", apath+"."+condKey))
						} else {
							validateCondition(cond, apath+"."+condKey, &errs, 0)
						}
					}
				}
				if confirm, has := action["confirm"]; has && confirm != nil {
					if _, ok := confirm.(map[string]any); !ok {
						errs = append(errs, issue.At("MANIFEST_ACTION_CONFIRM_INVALID", "confirm must be object", apath+".confirm"))
					}
				}
			}
		}
	}

	if modalsRaw, ok := manifest["modals"]; ok && modalsRaw != nil {
		modals, ok := modalsRaw.([]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_MODALS_INVALID", "modals must be a list", "modals"))
		} else {
			for midx, raw := range modals {
				mpath := fmt.Sprintf("modals[%d]", midx)
				modal, ok := raw.(map[string]any)
				if !ok {
					errs = append(errs, issue.At("MANIFEST_MODAL_INVALID", "modal must be an object", mpath))
					continue
				}
				rejectUnknownKeys(&errs, modal, allowedV1ModalKeys, mpath)
				modalID, _ := modal["id"].(string)
				if modalID == "" {
					errs = append(errs, issue.At("MANIFEST_MODAL_ID_INVALID", "modal.id is required", mpath+".id"))
					continue
				}
				if modalActionsRaw, ok := modal["actions"]; ok && modalActionsRaw != nil {
					modalActions, ok := modalActionsRaw.([]any)
					if !ok {
						errs = append(errs, issue.At("MANIFEST_MODAL_INVALID", "modal.actions must be a list", mpath+".actions"))
					} else {
						for aidx, rawAction := range modalActions {
							apath := fmt.Sprintf("%s.actions[%d]", mpath, aidx)
							action, ok := rawAction.(map[string]any)
							if !ok {
								errs = append(errs, issue.At("MANIFEST_MODAL_ACTION_INVALID", "modal action must be an object", apath))
								continue
							}
							rejectUnknownKeys(&errs, action, allowedV1ModalActionKeys, apath)
							actionID, hasID := action["action_id"].(string)
							kind, hasKind := action["kind"].(string)
							if !hasID && !hasKind {
								errs = append(errs, issue.At("MANIFEST_MODAL_ACTION_INVALID", "modal action requires action_id or kind", apath))
							}
							if hasID {
								if actionID == "" {
									errs = append(errs, issue.At("MANIFEST_MODAL_ACTION_INVALID", "modal action_id must be string", apath+".action_id"))
								} else if actionByID[actionID] == nil {
									errs = append(errs, issue.At("MANIFEST_MODAL_ACTION_UNKNOWN", "modal action_id not found", apath+".action_id"))
								}
							}
							if hasKind && !allowedV1ActionKinds[kind] && kind != "close_modal" {
								errs = append(errs, issue.At("MANIFEST_MODAL_ACTION_INVALID", "modal action kind must be allowlisted", apath+".kind"))
							}
						}
					}
				}
			}
		}
	}

	if triggersRaw, ok := manifest["triggers"]; ok && triggersRaw != nil {
		triggers, ok := triggersRaw.([]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_TRIGGERS_INVALID", "triggers must be a list", "triggers"))
		} else {
			for tidx, raw := range triggers {
				tpath := fmt.Sprintf("triggers[%d]", tidx)
				trigger, ok := raw.(map[string]any)
				if !ok {
					errs = append(errs, issue.At("MANIFEST_TRIGGER_INVALID", "trigger must be an object", tpath))
					continue
				}
				rejectUnknownKeys(&errs, trigger, allowedV1TriggerKeys, tpath)
				if triggerID, _ := trigger["id"].(string); triggerID == "" {
					errs = append(errs, issue.At("MANIFEST_TRIGGER_ID_INVALID", "trigger.id is required", tpath+".id"))
				}
				event, _ := trigger["event"].(string)
				if !allowedV1TriggerEvents[event] {
					errs = append(errs, issue.At("MANIFEST_TRIGGER_EVENT_INVALID", "trigger.event must be allowlisted", tpath+".event"))
					continue
				}
				if event == "record.created" || event == "record.updated" || event == "workflow.status_changed" {
					entityID, _ := trigger["entity_id"].(string)
					if entityID == "" {
						errs = append(errs, issue.At("MANIFEST_TRIGGER_ENTITY_INVALID", "trigger.entity_id is required", tpath+".entity_id"))
					} else {
						fullEntityID := entityID
						if !strings.HasPrefix(entityID, "entity.") {
							fullEntityID = "entity." + entityID
						}
						if entityByID[fullEntityID] == nil && entityByID[entityID] == nil {
							errs = append(errs, issue.At("MANIFEST_TRIGGER_ENTITY_UNKNOWN", "trigger.entity_id not found", tpath+".entity_id"))
						}
					}
				}
				if event == "action.clicked" {
					actionID, _ := trigger["action_id"].(string)
					if actionID == "" {
						errs = append(errs, issue.At("MANIFEST_TRIGGER_ACTION_INVALID", "trigger.action_id is required", tpath+".action_id"))
					} else if actionByID[actionID] == nil {
						errs = append(errs, issue.At("MANIFEST_TRIGGER_ACTION_UNKNOWN", "trigger.action_id not found", tpath+".action_id"))
					}
				}
			}
		}
	}

	viewsRaw, ok := manifest["views"].([]any)
	if !ok && manifest["views"] != nil {
		errs = append(errs, issue.At("MANIFEST_VIEWS_INVALID", "views must be a list", "views"))
	}
	viewIDs := map[string]bool{}
	for _, raw := range viewsRaw {
		if vm, ok := raw.(map[string]any); ok {
			if id, ok := vm["id"].(string); ok {
				viewIDs[id] = true
			}
		}
	}

	for i, raw := range viewsRaw {
		vpath := fmt.Sprintf("views[%d]", i)
		view, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_VIEW_INVALID", "view must be an object", vpath))
			continue
		}
		if viewID, _ := view["id"].(string); viewID == "" {
			errs = append(errs, issue.At("MANIFEST_VIEW_ID_INVALID", "view.id is required", vpath+".id"))
		}
		entityID, _ := firstString(view, "entity", "entity_id", "entityId")
		if entityID == "" {
			errs = append(errs, issue.At("MANIFEST_VIEW_ENTITY_INVALID", "view.entity is required", vpath+".entity"))
			continue
		}
		fullEntityID := entityID
		if !strings.HasPrefix(entityID, "entity.") {
			fullEntityID = "entity." + entityID
		}
		if entityByID[fullEntityID] == nil && entityByID[entityID] == nil {
			errs = append(errs, issue.At("MANIFEST_VIEW_ENTITY_UNKNOWN", "view entity not found", vpath+".entity"))
		}
		vtype, _ := firstString(view, "type", "kind")
		if !map[string]bool{"list": true, "form": true, "kanban": true, "graph": true, "calendar": true}[vtype] {
			errs = append(errs, issue.At("MANIFEST_VIEW_TYPE_INVALID", "view.type must be list, form, kanban, graph, or calendar", vpath+".type"))
		}

		if header, has := view["header"]; has && header != nil {
			if headerMap, ok := header.(map[string]any); !ok {
				errs = append(errs, issue.At("MANIFEST_VIEW_HEADER_INVALID", "view.header must be an object", vpath+".header"))
			} else {
				rejectUnknownKeys(&errs, headerMap, allowedV1ViewHeaderKeys, vpath+".header")
				if primaryActions, has := headerMap["primary_actions"]; has {
					validateHeaderActions(primaryActions, vpath+".header.primary_actions", &errs, actionByID, isV12Val)
				}
				if secondaryActions, has := headerMap["secondary_actions"]; has {
					validateHeaderActions(secondaryActions, vpath+".header.secondary_actions", &errs, actionByID, isV12Val)
				}
			}
		}
	}

	if workflowsRaw, ok := manifest["workflows"]; ok && workflowsRaw != nil {
		workflows, ok := workflowsRaw.([]any)
		if !ok {
			errs = append(errs, issue.At("MANIFEST_WORKFLOWS_INVALID", "workflows must be a list", "workflows"))
		} else {
			for widx, raw := range workflows {
				wpath := fmt.Sprintf("workflows[%d]", widx)
				wf, ok := raw.(map[string]any)
				if !ok {
					errs = append(errs, issue.At("MANIFEST_WORKFLOW_INVALID", "workflow must be an object", wpath))
					continue
				}
				if wfID, _ := wf["id"].(string); wfID == "" {
					errs = append(errs, issue.At("MANIFEST_WORKFLOW_INVALID", "workflow.id is required", wpath+".id"))
				}
				if entityID, _ := wf["entity"].(string); entityID != "" {
					if entityByID[entityID] == nil && entityByID["entity."+entityID] == nil {
						errs = append(errs, issue.At("MANIFEST_WORKFLOW_ENTITY_UNKNOWN", "workflow.entity not found", wpath+".entity"))
					}
				}
			}
		}
	}

	if !isV13Val {
		if pagesRaw, has := manifest["pages"]; has && pagesRaw != nil {
			if _, ok := pagesRaw.([]any); !ok {
				errs = append(errs, issue.At("MANIFEST_PAGES_INVALID", "pages must be a list", "pages"))
			}
		}
	}
	if pages, ok := manifest["pages"].([]any); ok {
		for pidx, raw := range pages {
			ppath := fmt.Sprintf("pages[%d]", pidx)
			page, ok := raw.(map[string]any)
			if !ok {
				errs = append(errs, issue.At("MANIFEST_PAGE_INVALID", "page must be an object", ppath))
				continue
			}
			if pageID, _ := page["id"].(string); pageID == "" {
				errs = append(errs, issue.At("MANIFEST_PAGE_ID_INVALID", "page.id is required", ppath+".id"))
			}
			validateBlocks(page["content"], ppath+".content", viewIDs, entityByID, actionByID, &errs, isV11Val, isV12Val, isV13Val, "", 0)
		}
	}

	return errs, warnings
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func validateHeaderActions(actionsRaw any, path string, errs *issue.List, actionByID map[string]map[string]any, isV12Val bool) {
	if actionsRaw == nil {
		return
	}
	actions, ok := actionsRaw.([]any)
	if !ok {
		*errs = append(*errs, issue.At("MANIFEST_VIEW_HEADER_ACTIONS_INVALID", "actions must be a list", path))
		return
	}
	for aidx, raw := range actions {
		apath := fmt.Sprintf("%s[%d]", path, aidx)
		action, ok := raw.(map[string]any)
		if !ok {
			*errs = append(*errs, issue.At("MANIFEST_VIEW_HEADER_ACTION_INVALID", "action must be an object", apath))
			continue
		}
		rejectUnknownKeys(errs, action, allowedV1ViewHeaderActionKeys, apath)
		actionID, hasID := action["action_id"].(string)
		kind, hasKind := action["kind"].(string)
		if hasID && actionID != "" {
			if actionByID[actionID] == nil {
				*errs = append(*errs, issue.At("MANIFEST_VIEW_HEADER_ACTION_UNKNOWN", "action_id not found", apath+".action_id"))
			}
		} else if hasKind && kind != "" {
			if kind != "navigate" && kind != "open_form" && kind != "refresh" {
				*errs = append(*errs, issue.At("MANIFEST_VIEW_HEADER_ACTION_INVALID", "inline actions must be navigate/open_form/refresh", apath+".kind"))
			}
			if kind == "navigate" {
				target, _ := action["target"].(string)
				if _, _, ok := parseTarget(target); !ok {
					*errs = append(*errs, issue.At("MANIFEST_TARGET_INVALID", "navigate target must be page:<id> or view:<id>", apath+".target"))
				}
			}
		} else {
			*errs = append(*errs, issue.At("MANIFEST_VIEW_HEADER_ACTION_INVALID", "action_id or kind required", apath))
		}
		for _, condKey := range []string{"visible_when", "enabled_when"} {
			if cond, has := action[condKey]; has && cond != nil {
				if !isV12Val {
					*errs = append(*errs, issue.At("MANIFEST_ACTION_CONDITION_INVALID", condKey+" requires manifest_version >= 1.2", apath+"."+condKey))
				} else {
					validateCondition(cond, apath+"."+condKey, errs, 0)
				}
			}
		}
	}
}
