package config

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.trai.ch/mallard/internal/core/domain"
	"go.trai.ch/zerr"
)

// decodeHCL parses an HCL plan file into the same shape as a YAML one.
func decodeHCL(path string, data []byte) (*Planfile, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, zerr.Wrap(domain.ErrConfigParseFailed, diags.Error())
	}

	var parsed hclPlanfile
	diags = gohcl.DecodeBody(hclFile.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, zerr.Wrap(domain.ErrConfigParseFailed, diags.Error())
	}

	file := &Planfile{
		Root:     parsed.Root,
		Language: parsed.Language,
	}
	if parsed.Settings != nil {
		file.Settings = *parsed.Settings
	}

	seen := make(map[string]bool)
	for _, b := range parsed.Prework {
		file.Prework = append(file.Prework, entry[BindingDTO]{
			Name:  b.Name,
			Value: BindingDTO{Command: b.Command, Language: b.Language},
		})
	}
	for _, b := range parsed.Imports {
		file.Imports = append(file.Imports, entry[BindingDTO]{
			Name:  b.Name,
			Value: BindingDTO{Command: b.Command, Language: b.Language},
		})
	}
	for _, t := range parsed.Targets {
		if seen[t.Name] {
			return nil, domain.Detail(domain.ErrTargetAlreadyExists, "target", t.Name)
		}
		seen[t.Name] = true
		file.Targets = append(file.Targets, entry[TargetDTO]{
			Name: t.Name,
			Value: TargetDTO{
				Command:   t.Command,
				Language:  t.Language,
				DependsOn: t.DependsOn,
				Files:     t.Files,
				Trigger:   t.Trigger,
				MapOver:   t.MapOver,
				Retries:   t.Retries,
			},
		})
	}
	return file, nil
}
