package policy

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Descriptor field names of the rule wire shape.
const (
	fieldType         = "type"
	fieldPattern      = "pattern"
	fieldEnabled      = "enabled"
	fieldImagePaths   = "imagePaths"
	fieldOverlayTexts = "overlayTexts"
	fieldTextX        = "textX"
	fieldTextY        = "textY"
	fieldImageScale   = "imageScale"
	fieldImageOffsetX = "imageOffsetX"
	fieldImageOffsetY = "imageOffsetY"

	// Single-value fields accepted from older configuration pushes.
	fieldImagePath   = "imagePath"
	fieldOverlayText = "overlayText"
)

// ParseDescriptors decodes a JSON array of rule descriptors.
// Missing optional fields take their defaults. A malformed descriptor fails
// the whole list so a bad push never half-replaces the installed rules.
func ParseDescriptors(raw string) ([]Rule, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("rule descriptors are not valid JSON")
	}
	doc := gjson.Parse(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("rule descriptors must be a JSON array")
	}

	items := doc.Array()
	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		rule, err := parseDescriptor(item)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseDescriptor(d gjson.Result) (Rule, error) {
	if !d.IsObject() {
		return Rule{}, fmt.Errorf("descriptor must be an object")
	}

	t := d.Get(fieldType)
	if t.Type != gjson.Number || t.Num != float64(int(t.Num)) {
		return Rule{}, fmt.Errorf("missing or non-integer %q", fieldType)
	}
	p := d.Get(fieldPattern)
	if p.Type != gjson.String {
		return Rule{}, fmt.Errorf("missing or non-string %q", fieldPattern)
	}

	rule, err := NewRule(RuleKind(t.Int()), p.String())
	if err != nil {
		return Rule{}, err
	}

	if e := d.Get(fieldEnabled); e.IsBool() {
		rule.Enabled = e.Bool()
	}

	rule.ImagePaths = stringList(d.Get(fieldImagePaths))
	if len(rule.ImagePaths) == 0 {
		if legacy := d.Get(fieldImagePath); legacy.Type == gjson.String && legacy.String() != "" {
			rule.ImagePaths = []string{legacy.String()}
		}
	}

	texts := stringList(d.Get(fieldOverlayTexts))
	if len(texts) == 0 {
		if legacy := d.Get(fieldOverlayText); legacy.Type == gjson.String && legacy.String() != "" {
			texts = []string{legacy.String()}
		}
	}
	if len(texts) > 0 {
		rule.OverlayTexts = texts
	}

	rule.TextPosition.X = number(d.Get(fieldTextX), DefaultTextX)
	rule.TextPosition.Y = number(d.Get(fieldTextY), DefaultTextY)
	rule.ImageScale = number(d.Get(fieldImageScale), DefaultImageScale)
	if rule.ImageScale < 0 {
		rule.ImageScale = 0
	}
	rule.ImageOffset.X = number(d.Get(fieldImageOffsetX), 0)
	rule.ImageOffset.Y = number(d.Get(fieldImageOffsetY), 0)

	return rule, nil
}

// stringList keeps only the string elements of a JSON array.
func stringList(r gjson.Result) []string {
	if !r.IsArray() {
		return []string{}
	}
	out := make([]string, 0)
	for _, v := range r.Array() {
		if v.Type == gjson.String {
			out = append(out, v.String())
		}
	}
	return out
}

func number(r gjson.Result, def float64) float64 {
	if r.Type != gjson.Number {
		return def
	}
	return r.Float()
}

// EncodeDescriptors renders rules back to the wire shape.
func EncodeDescriptors(rules []Rule) (string, error) {
	out := "[]"
	for i, r := range rules {
		obj := "{}"
		fields := []struct {
			path  string
			value any
		}{
			{fieldType, int(r.Kind())},
			{fieldPattern, r.Pattern},
			{fieldEnabled, r.Enabled},
			{fieldImagePaths, nonNil(r.ImagePaths)},
			{fieldOverlayTexts, nonNil(r.OverlayTexts)},
			{fieldTextX, r.TextPosition.X},
			{fieldTextY, r.TextPosition.Y},
			{fieldImageScale, r.ImageScale},
			{fieldImageOffsetX, r.ImageOffset.X},
			{fieldImageOffsetY, r.ImageOffset.Y},
		}
		var err error
		for _, f := range fields {
			if obj, err = sjson.Set(obj, f.path, f.value); err != nil {
				return "", fmt.Errorf("rule %d: encode %s: %w", i, f.path, err)
			}
		}
		if out, err = sjson.SetRaw(out, "-1", obj); err != nil {
			return "", fmt.Errorf("rule %d: append: %w", i, err)
		}
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
