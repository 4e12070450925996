// Package normalize folds legacy and v0-era manifest shapes into the
// canonical v1 contract shape: entity fields as lists, view kind/columns/
// sections filled in, block targets qualified, and module metadata defaulted
// from top-level keys when no module object is present.
package normalize

import "strings"

// Manifest normalizes a raw decoded manifest document into the canonical
// shape. It is pure and total: it never errors, mirroring defensive
// best-effort normalization of arbitrary input.
func Manifest(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}

	out := map[string]any{}
	if v, ok := raw["manifest_version"].(string); ok && v != "" {
		out["manifest_version"] = v
	} else {
		out["manifest_version"] = "0.x"
	}

	if mod, ok := raw["module"].(map[string]any); ok {
		out["module"] = copyMap(mod)
	} else {
		moduleID := firstNonEmpty(raw["module_id"], raw["id"])
		module := map[string]any{
			"id":          moduleID,
			"version":     raw["version"],
			"description": raw["description"],
		}
		if name, ok := raw["name"]; ok && name != nil {
			module["name"] = name
		} else if idStr, ok := moduleID.(string); ok && idStr != "" {
			module["name"] = titleCase(idStr)
		} else {
			module["name"] = nil
		}
		out["module"] = module
	}

	entities := normalizeEntities(raw["entities"])
	out["entities"] = entities

	entityIDs := map[string]bool{}
	for _, e := range entities {
		if id, ok := e["id"].(string); ok {
			entityIDs[id] = true
		}
	}

	if views, ok := raw["views"].([]any); ok {
		normalizedViews := make([]map[string]any, 0, len(views))
		for _, v := range views {
			if vm, ok := v.(map[string]any); ok {
				normalizedViews = append(normalizedViews, normalizeView(vm, entityIDs))
			}
		}
		out["views"] = normalizedViews
	} else {
		out["views"] = []map[string]any{}
	}

	if pages, ok := raw["pages"].([]any); ok {
		normalizedPages := make([]map[string]any, 0, len(pages))
		for _, p := range pages {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			item := copyMap(pm)
			item["content"] = normalizeBlocks(pm["content"])
			normalizedPages = append(normalizedPages, item)
		}
		out["pages"] = normalizedPages
	}

	switch w := raw["workflows"].(type) {
	case []any:
		out["workflows"] = w
	case map[string]any:
		values := make([]any, 0, len(w))
		for _, v := range w {
			values = append(values, v)
		}
		out["workflows"] = values
	default:
		out["workflows"] = []any{}
	}

	if relations, ok := raw["relations"].([]any); ok {
		out["relations"] = relations
	}

	reserved := map[string]bool{
		"manifest_version": true, "module": true, "module_id": true, "id": true,
		"name": true, "version": true, "description": true, "entities": true,
		"views": true, "workflows": true, "relations": true, "pages": true,
	}
	for k, v := range raw {
		if reserved[k] {
			continue
		}
		out[k] = v
	}

	return out
}

func firstNonEmpty(vals ...any) any {
	for _, v := range vals {
		if v != nil {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func titleCase(value string) string {
	replaced := strings.ReplaceAll(value, "-", "_")
	rawParts := strings.Split(replaced, "_")
	parts := make([]string, 0, len(rawParts))
	for _, p := range rawParts {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return value
	}
	titled := make([]string, len(parts))
	for i, p := range parts {
		titled[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(titled, " ")
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func normalizeEnumOptions(item map[string]any) {
	if item["type"] != "enum" {
		return
	}
	options, ok := item["options"].([]any)
	if !ok || len(options) == 0 {
		options, ok = item["values"].([]any)
		if !ok || len(options) == 0 {
			return
		}
	}
	strs := make([]string, 0, len(options))
	for _, o := range options {
		s, ok := o.(string)
		if !ok {
			return
		}
		strs = append(strs, s)
	}
	expanded := make([]any, len(strs))
	for i, s := range strs {
		expanded[i] = map[string]any{"value": s, "label": titleCase(s)}
	}
	item["options"] = expanded
}

func normalizeFields(fields any) []map[string]any {
	switch f := fields.(type) {
	case []any:
		out := make([]map[string]any, 0, len(f))
		for _, raw := range f {
			fm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := copyMap(fm)
			normalizeEnumOptions(item)
			out = append(out, item)
		}
		return out
	case map[string]any:
		out := make([]map[string]any, 0, len(f))
		for fid, raw := range f {
			fm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := copyMap(fm)
			if _, has := item["id"]; !has {
				item["id"] = fid
			}
			normalizeEnumOptions(item)
			out = append(out, item)
		}
		return out
	default:
		return []map[string]any{}
	}
}

func normalizeEntities(entities any) []map[string]any {
	switch e := entities.(type) {
	case []any:
		out := make([]map[string]any, 0, len(e))
		for _, raw := range e {
			em, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := copyMap(em)
			item["fields"] = normalizeFields(item["fields"])
			out = append(out, item)
		}
		return out
	case map[string]any:
		out := make([]map[string]any, 0, len(e))
		for eid, raw := range e {
			em, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			item := copyMap(em)
			if _, has := item["id"]; !has {
				item["id"] = eid
			}
			item["fields"] = normalizeFields(item["fields"])
			out = append(out, item)
		}
		return out
	default:
		return []map[string]any{}
	}
}

func canonicalEntityID(entity string, entityIDs map[string]bool) string {
	if entityIDs[entity] {
		return entity
	}
	if !strings.HasPrefix(entity, "entity.") {
		prefixed := "entity." + entity
		if entityIDs[prefixed] {
			return prefixed
		}
	}
	return entity
}

func normalizeView(view map[string]any, entityIDs map[string]bool) map[string]any {
	item := copyMap(view)

	vtype, _ := firstNonEmpty(view["kind"], view["type"]).(string)
	if vtype != "" {
		item["kind"] = vtype
	}

	entity, _ := firstNonEmpty(view["entity"], view["entity_id"], view["entityId"]).(string)
	if entity != "" {
		item["entity"] = canonicalEntityID(entity, entityIDs)
	}

	switch vtype {
	case "list":
		if _, has := item["columns"]; !has {
			if fields, ok := item["fields"].([]any); ok {
				cols := make([]any, 0, len(fields))
				for _, fid := range fields {
					if s, ok := fid.(string); ok {
						cols = append(cols, map[string]any{"field_id": s})
					}
				}
				item["columns"] = cols
			}
		}
		if cols, ok := item["columns"].([]any); ok {
			filtered := make([]any, 0, len(cols))
			for _, col := range cols {
				switch c := col.(type) {
				case map[string]any:
					if c["field_id"] != nil {
						filtered = append(filtered, c)
					}
				case string:
					filtered = append(filtered, map[string]any{"field_id": c})
				}
			}
			item["columns"] = filtered
		}
	case "form":
		if _, has := item["sections"]; !has {
			if fields, ok := item["fields"].([]any); ok {
				item["sections"] = []any{
					map[string]any{"id": "main", "title": "Main", "fields": fields},
				}
			}
		}
		if secs, ok := item["sections"].([]any); ok {
			filtered := make([]any, 0, len(secs))
			for _, s := range secs {
				if sm, ok := s.(map[string]any); ok {
					filtered = append(filtered, sm)
				}
			}
			item["sections"] = filtered
		}
	}

	return item
}

func normalizeBlocks(blocks any) []map[string]any {
	list, ok := blocks.([]any)
	if !ok {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, len(list))
	for _, raw := range list {
		bm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item := copyMap(bm)
		kind, _ := item["kind"].(string)

		switch kind {
		case "view":
			if target, ok := item["target"].(string); ok {
				if !strings.HasPrefix(target, "view:") {
					item["target"] = "view:" + target
				}
			}
		case "stack":
			item["content"] = normalizeBlocks(item["content"])
		case "grid":
			gridItems, _ := item["items"].([]any)
			normalizedItems := make([]map[string]any, 0, len(gridItems))
			for _, gi := range gridItems {
				gim, ok := gi.(map[string]any)
				if !ok {
					continue
				}
				gridNorm := copyMap(gim)
				gridNorm["content"] = normalizeBlocks(gim["content"])
				normalizedItems = append(normalizedItems, gridNorm)
			}
			item["items"] = normalizedItems
		case "tabs":
			tabs, _ := item["tabs"].([]any)
			normalizedTabs := make([]map[string]any, 0, len(tabs))
			for _, t := range tabs {
				tm, ok := t.(map[string]any)
				if !ok {
					continue
				}
				tabNorm := copyMap(tm)
				tabNorm["content"] = normalizeBlocks(tm["content"])
				normalizedTabs = append(normalizedTabs, tabNorm)
			}
			item["tabs"] = normalizedTabs
		case "container", "record":
			item["content"] = normalizeBlocks(item["content"])
		}

		out = append(out, item)
	}
	return out
}
