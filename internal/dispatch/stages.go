package dispatch

import (
	"context"
	"fmt"
	"strings"

	"alpacon-mcp/internal/api"
	"alpacon-mcp/internal/validation"
)

// Stage inspects or augments a request. Returning a non-nil envelope stops
// the chain and that envelope becomes the call's result.
type Stage func(ctx context.Context, req *Request) *api.Envelope

// regionStage resolves the region (absent means the default) and checks it
// against the allowed set.
func (p *Pipeline) regionStage(_ context.Context, req *Request) *api.Envelope {
	region := p.defaultRegion
	if req.Args.Has("region") {
		s, ok := req.Args["region"].(string)
		if !ok || !validation.ValidRegionIn(s, p.regions) {
			return api.FieldError("region", fmt.Sprintf("Invalid region: %q. Must be one of: %s",
				fmt.Sprint(req.Args["region"]), strings.Join(p.regions, ", ")))
		}
		region = s
	}
	req.Region = region
	return nil
}

func workspaceStage(_ context.Context, req *Request) *api.Envelope {
	ws := req.Args.String("workspace")
	if ws == "" {
		return api.FieldError("workspace", "workspace parameter is required")
	}
	if !validation.ValidWorkspace(ws) {
		return api.FieldError("workspace", fmt.Sprintf(
			"Invalid workspace format: %q. Use lowercase letters, digits, '-' or '_' (max 63 characters)", ws))
	}
	req.Workspace = ws
	return nil
}

func identifierStage(rules []IdentifierRule) Stage {
	return func(_ context.Context, req *Request) *api.Envelope {
		for _, rule := range rules {
			raw, present := req.Args[rule.Field]
			if !present || raw == nil || raw == "" {
				if rule.Required {
					return api.FieldError(rule.Field, fmt.Sprintf("%s parameter is required", rule.Field))
				}
				continue
			}
			id, ok := raw.(string)
			if !ok || !validation.ValidIdentifier(id) {
				return api.FromValidationError(&api.ValidationError{
					Field:   rule.Field,
					Message: fmt.Sprintf("Invalid %s format: %q. Must be a UUID", rule.Field, fmt.Sprint(raw)),
					Hint:    "e.g., 550e8400-e29b-41d4-a716-446655440000",
				})
			}
			req.Identifiers[rule.Field] = id
		}
		return nil
	}
}

func identifierListStage(rules []ListRule) Stage {
	return func(_ context.Context, req *Request) *api.Envelope {
		for _, rule := range rules {
			ids, present := req.Args.StringSlice(rule.Field)
			if !present {
				if rule.Required {
					return api.FieldError(rule.Field, fmt.Sprintf("%s parameter is required", rule.Field))
				}
				continue
			}
			if len(ids) == 0 {
				if rule.NonEmpty {
					return api.FieldError(rule.Field, fmt.Sprintf("%s cannot be empty", rule.Field))
				}
				req.IdentifierLists[rule.Field] = ids
				continue
			}

			if bad := validation.InvalidIdentifiers(ids); len(bad) > 0 {
				hint := rule.Hint
				if hint == "" {
					hint = DefaultUUIDHint
				}
				return api.FromValidationError(&api.ValidationError{
					Field:   rule.Field,
					Message: fmt.Sprintf("Invalid %s format: %s", rule.Field, strings.Join(bad, ", ")),
					Hint:    hint,
					Invalid: bad,
				})
			}
			req.IdentifierLists[rule.Field] = dedupe(ids)
		}
		return nil
	}
}

func pathStage(rules []PathRule) Stage {
	return func(_ context.Context, req *Request) *api.Envelope {
		for _, rule := range rules {
			if !req.Args.Has(rule.Field) {
				if rule.Required {
					return api.FieldError(rule.Field, fmt.Sprintf("%s parameter is required", rule.Field))
				}
				continue
			}
			path, ok := req.Args[rule.Field].(string)
			if !ok {
				return api.FieldError(rule.Field, fmt.Sprintf("Invalid %s: must be a string", rule.Field))
			}
			if problem := validation.ValidatePath(path, rule.Absolute, rule.ForbidTraversal); problem != validation.PathOK {
				return api.FieldError(rule.Field, fmt.Sprintf("Invalid %s: %s", rule.Field, problem))
			}
		}
		return nil
	}
}

func requiredStage(fields []string) Stage {
	return func(_ context.Context, req *Request) *api.Envelope {
		for _, f := range fields {
			v, ok := req.Args[f]
			if !ok || v == nil {
				return api.FieldError(f, fmt.Sprintf("%s parameter is required", f))
			}
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				return api.FieldError(f, fmt.Sprintf("%s parameter is required", f))
			}
		}
		return nil
	}
}

// credentialStage resolves the token for (region, workspace). A missing
// credential is not an input error, so the envelope carries no field.
func (p *Pipeline) credentialStage(_ context.Context, req *Request) *api.Envelope {
	cred, ok := p.store.Get(req.Region, req.Workspace)
	if !ok || cred.Token == "" {
		err := &api.CredentialMissingError{Region: req.Region, Workspace: req.Workspace}
		return api.Error(err.Error())
	}
	req.Token = cred.Token
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
