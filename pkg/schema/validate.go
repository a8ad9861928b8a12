package schema

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/visibility"
	"github.com/goliatone/go-formflow/pkg/visibility/expr"
)

// Option tweaks validation.
type Option func(*options)

type options struct {
	evaluator           visibility.Evaluator
	variantRequirements bool
	location            *time.Location
}

var defaultEvaluator = expr.New()

func newOptions(opts []Option) options {
	cfg := options{
		evaluator:           defaultEvaluator,
		variantRequirements: true,
		location:            time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluator selects the engine used for refinement rules.
func WithEvaluator(evaluator visibility.Evaluator) Option {
	return func(o *options) {
		if evaluator != nil {
			o.evaluator = evaluator
		}
	}
}

// WithVariantRequirements toggles enforcement of the required lists declared
// by union variants. Disabling it makes every conditional field optional at
// schema level, matching forms whose conditional requirements were only
// enforced by what the page rendered.
func WithVariantRequirements(enabled bool) Option {
	return func(o *options) {
		o.variantRequirements = enabled
	}
}

// WithLocation sets the zone used for zone-less datetime input.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// VisibleFields returns the fields rendered for values, in declaration order.
// Fields outside the union are always visible; conditional fields are visible
// only under the variant selected by the discriminator.
func VisibleFields(form *FormSchema, values Values) []FieldSpec {
	if form == nil {
		return nil
	}
	active, hasActive := form.Union.Active(values)
	out := make([]FieldSpec, 0, len(form.Fields))
	for _, field := range form.Fields {
		if form.Union.Conditional(field.ID) && (!hasActive || !active.Shows(field.ID)) {
			continue
		}
		out = append(out, field)
	}
	return out
}

// Validate checks values against form. Only visible fields are validated.
// Field rules run first, then variant requirements, then refinements; a field
// keeps the first message reported for it.
func Validate(form *FormSchema, values Values, opts ...Option) Result {
	cfg := newOptions(opts)
	c := &collector{form: form}
	if form == nil {
		c.formLevel("schema: form is nil")
		return c.result
	}

	visible := VisibleFields(form, values)
	active, hasActive := form.Union.Active(values)

	for _, field := range visible {
		raw, _ := values.Get(field.ID)
		required := field.Required || (cfg.variantRequirements && hasActive && active.Requires(field.ID))
		if message := checkField(field, raw, required, cfg); message != "" {
			c.field(field.ID, message)
		}
	}

	if len(form.Refinements) > 0 {
		ctx := visibility.Context{
			Values: ruleValues(form, visible, values, cfg),
		}
		shown := make(map[FieldID]struct{}, len(visible))
		for _, field := range visible {
			shown[field.ID] = struct{}{}
		}
		for _, refinement := range form.Refinements {
			if _, ok := shown[refinement.Target]; !ok || c.has(refinement.Target) {
				continue
			}
			violated, err := cfg.evaluator.Eval(string(refinement.Target), refinement.When, ctx)
			if err != nil {
				c.formLevel(fmt.Sprintf("refinement for %s: %v", refinement.Target, err))
				continue
			}
			if violated {
				c.field(refinement.Target, refinement.Message)
			}
		}
	}

	return c.result
}

// IsRequired reports whether field id must be filled in for values: either
// the field itself is required or the selected variant requires it.
func IsRequired(form *FormSchema, values Values, id FieldID, opts ...Option) bool {
	if form == nil {
		return false
	}
	field, ok := form.Field(id)
	if !ok {
		return false
	}
	if field.Required {
		return true
	}
	if !newOptions(opts).variantRequirements {
		return false
	}
	active, ok := form.Union.Active(values)
	return ok && active.Requires(id)
}

// ruleValues builds the lookup map refinements see: every visible field is
// present, strings are trimmed, absent strings are "" and numbers are parsed
// when possible, so rules behave the same across engines.
func ruleValues(form *FormSchema, visible []FieldSpec, values Values, cfg options) map[string]any {
	out := make(map[string]any, len(form.Fields))
	for _, field := range visible {
		raw, _ := values.Get(field.ID)
		key := string(field.ID)
		switch field.Kind {
		case KindNumber:
			if n, ok := asNumber(raw); ok {
				out[key] = n
			} else {
				out[key] = nil
			}
		case KindSet:
			items, _ := asStrings(raw)
			if items == nil {
				items = []string{}
			}
			out[key] = items
		case KindDateTime:
			if t, ok := asTime(raw, cfg.location); ok {
				out[key] = t.Format(time.RFC3339)
			} else {
				out[key] = strings.TrimSpace(asString(raw))
			}
		default:
			out[key] = strings.TrimSpace(asString(raw))
		}
	}
	return out
}

func checkField(field FieldSpec, raw any, required bool, cfg options) string {
	if isEmpty(raw) {
		if required {
			return field.requiredMessage()
		}
		return ""
	}

	switch field.Kind {
	case KindNumber:
		n, ok := asNumber(raw)
		if !ok {
			return typeMessage(field, fmt.Sprintf("%s must be a number", field.Label))
		}
		return checkRules(field, asString(raw), n)
	case KindEnum:
		value := asString(raw)
		if !field.HasOption(value) {
			return typeMessage(field, optionsMessage(field.Options, value))
		}
		return checkRules(field, value, 0)
	case KindDateTime:
		if _, ok := asTime(raw, cfg.location); !ok {
			return typeMessage(field, "Invalid date")
		}
		return checkRules(field, asString(raw), 0)
	case KindSet:
		items, ok := asStrings(raw)
		if !ok {
			return typeMessage(field, fmt.Sprintf("%s must be a list of options", field.Label))
		}
		for _, item := range items {
			if !field.HasOption(item) {
				return typeMessage(field, optionsMessage(field.Options, item))
			}
		}
		return checkRules(field, "", float64(len(items)))
	default:
		return checkRules(field, asString(raw), 0)
	}
}

func typeMessage(field FieldSpec, fallback string) string {
	if field.TypeMessage != "" {
		return field.TypeMessage
	}
	return fallback
}

func optionsMessage(options []string, got string) string {
	quoted := make([]string, len(options))
	for i, option := range options {
		quoted[i] = "'" + option + "'"
	}
	return fmt.Sprintf("Invalid option: expected one of %s, received '%s'", strings.Join(quoted, " | "), got)
}

// checkRules runs field rules in order. text is the textual value, number is
// the parsed number for number fields or the item count for sets.
func checkRules(field FieldSpec, text string, number float64) string {
	for _, rule := range field.Rules {
		if ok := ruleHolds(field, rule, text, number); !ok {
			if rule.Message != "" {
				return rule.Message
			}
			return defaultRuleMessage(field, rule)
		}
	}
	return ""
}

func ruleHolds(field FieldSpec, rule Rule, text string, number float64) bool {
	switch rule.Kind {
	case RuleMin:
		threshold, err := strconv.ParseFloat(rule.Params["value"], 64)
		if err != nil {
			return true
		}
		if rule.Params["exclusive"] == "true" {
			return number > threshold
		}
		return number >= threshold
	case RuleMinItems:
		threshold, err := strconv.Atoi(rule.Params["value"])
		if err != nil {
			return true
		}
		return int(number) >= threshold
	case RuleMinLength:
		threshold, err := strconv.Atoi(rule.Params["value"])
		if err != nil {
			return true
		}
		return len([]rune(text)) >= threshold
	case RulePattern:
		re, err := compilePattern(rule.Params["pattern"])
		if err != nil {
			return false
		}
		return re.MatchString(text)
	case RuleEmail:
		return emailPattern.MatchString(strings.TrimSpace(text))
	case RuleURL:
		return isURL(text)
	case RuleNumeric:
		_, ok := asNumber(text)
		return ok
	default:
		return true
	}
}

func defaultRuleMessage(field FieldSpec, rule Rule) string {
	switch rule.Kind {
	case RuleMin:
		if rule.Params["exclusive"] == "true" {
			return fmt.Sprintf("%s must be greater than %s", field.Label, rule.Params["value"])
		}
		return fmt.Sprintf("%s must be at least %s", field.Label, rule.Params["value"])
	case RuleMinItems:
		return fmt.Sprintf("Select at least %s option(s) for %s", rule.Params["value"], field.Label)
	case RuleMinLength:
		return fmt.Sprintf("%s must contain at least %s character(s)", field.Label, rule.Params["value"])
	case RulePattern:
		return fmt.Sprintf("%s has an invalid format", field.Label)
	case RuleEmail:
		return "Invalid email"
	case RuleURL:
		return "Invalid url"
	case RuleNumeric:
		return fmt.Sprintf("%s must be a number", field.Label)
	default:
		return fmt.Sprintf("%s is invalid", field.Label)
	}
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+'\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)*\.[A-Za-z]{2,}$`)

func isURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

var patterns sync.Map // pattern -> *regexp.Regexp

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Store(pattern, re)
	return re, nil
}
