package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// DateLayout is the literal format of ONE_DATE parameters
const DateLayout = "2006-01-02"

// listSeparator separates the values of MANY_STRINGS and MANY_DRUGS literals
const listSeparator = ";"

// FunctionInputResolver checks literal parameters against the input a rule
// declares and coerces them to typed values. Accessors assume Resolve
// succeeded but still return errors so creators can propagate them.
type FunctionInputResolver struct {
	res *Resources
}

// NewFunctionInputResolver creates a resolver validating against res
func NewFunctionInputResolver(res *Resources) FunctionInputResolver {
	return FunctionInputResolver{res: res}
}

// IcdTitle is a resolved ICD title with the code it stands for
type IcdTitle struct {
	Code  string
	Title string
}

// Resolve verifies that fn's parameters fit the declared input of its rule
func (r FunctionInputResolver) Resolve(fn EligibilityFunction) error {
	input, ok := InputOf(fn.Rule)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRule, fn.Rule)
	}

	switch input {
	case InputOneFunction, InputAtLeastTwoFunctions:
		if _, ok := fn.Functions(); !ok {
			return ErrExpectedFunction
		}
		if input == InputOneFunction {
			return arity(fn, 1)
		}
		if len(fn.Parameters) < 2 {
			return fmt.Errorf("%w: expected at least 2, got %d", ErrWrongArity, len(fn.Parameters))
		}
		return nil
	}

	if _, ok := fn.Literals(); !ok {
		return ErrNotComposite
	}

	var err error
	switch input {
	case InputNone:
		err = arity(fn, 0)
	case InputOneInteger:
		_, err = r.OneInteger(fn)
	case InputTwoIntegers:
		_, _, err = r.TwoIntegers(fn)
	case InputOneDouble:
		_, err = r.OneDouble(fn)
	case InputOneString:
		_, err = r.OneString(fn)
	case InputManyStrings:
		_, err = r.ManyStrings(fn)
	case InputOneIntegerOneString:
		_, _, err = r.OneIntegerOneString(fn)
	case InputOneDate:
		_, err = r.OneDate(fn)
	case InputOneGene:
		_, err = r.OneGene(fn)
	case InputOneDoidTerm:
		_, err = r.OneDoidTerm(fn)
	case InputOneIcdTitle:
		_, err = r.OneIcdTitle(fn)
	case InputOneMedicationCategory:
		_, err = r.OneMedicationCategory(fn)
	case InputManyDrugs:
		_, err = r.ManyDrugs(fn)
	case InputOneExpression:
		_, err = r.OneExpression(fn)
	default:
		err = fmt.Errorf("unsupported input %s", input)
	}
	return err
}

func arity(fn EligibilityFunction, want int) error {
	if len(fn.Parameters) != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrWrongArity, want, len(fn.Parameters))
	}
	return nil
}

func literals(fn EligibilityFunction, want int) ([]string, error) {
	if err := arity(fn, want); err != nil {
		return nil, err
	}
	values, ok := fn.Literals()
	if !ok {
		return nil, ErrNotComposite
	}
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// parseInteger reads an integer parameter. Every integer rule counts ages,
// weeks, months, lines or a WHO status, so negative values are rejected.
func parseInteger(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, invalid("%q is not an integer", value)
	}
	if n < 0 {
		return 0, invalid("%d must not be negative", n)
	}
	return n, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OneInteger returns the single integer parameter of fn
func (r FunctionInputResolver) OneInteger(fn EligibilityFunction) (int, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return 0, err
	}
	return parseInteger(values[0])
}

// TwoIntegers returns both integer parameters of fn
func (r FunctionInputResolver) TwoIntegers(fn EligibilityFunction) (int, int, error) {
	values, err := literals(fn, 2)
	if err != nil {
		return 0, 0, err
	}
	first, err := parseInteger(values[0])
	if err != nil {
		return 0, 0, err
	}
	second, err := parseInteger(values[1])
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

// OneDouble returns the single numeric parameter of fn
func (r FunctionInputResolver) OneDouble(fn EligibilityFunction) (float64, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(values[0], 64)
	if err != nil {
		return 0, invalid("%q is not a number", values[0])
	}
	return f, nil
}

// OneString returns the single non-empty string parameter of fn
func (r FunctionInputResolver) OneString(fn EligibilityFunction) (string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return "", err
	}
	if values[0] == "" {
		return "", invalid("empty string")
	}
	return values[0], nil
}

// ManyStrings returns the ';'-separated values of fn's single parameter
func (r FunctionInputResolver) ManyStrings(fn EligibilityFunction) ([]string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return nil, err
	}
	list := splitList(values[0])
	if len(list) == 0 {
		return nil, invalid("empty list")
	}
	return list, nil
}

// OneIntegerOneString returns the integer and string parameters of fn
func (r FunctionInputResolver) OneIntegerOneString(fn EligibilityFunction) (int, string, error) {
	values, err := literals(fn, 2)
	if err != nil {
		return 0, "", err
	}
	n, err := parseInteger(values[0])
	if err != nil {
		return 0, "", err
	}
	if values[1] == "" {
		return 0, "", invalid("empty string")
	}
	return n, values[1], nil
}

// OneDate returns the single date parameter of fn
func (r FunctionInputResolver) OneDate(fn EligibilityFunction) (time.Time, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return time.Time{}, err
	}
	date, err := time.Parse(DateLayout, values[0])
	if err != nil {
		return time.Time{}, invalid("%q is not a date (%s)", values[0], DateLayout)
	}
	return date, nil
}

// OneGene returns the canonical name of fn's gene parameter
func (r FunctionInputResolver) OneGene(fn EligibilityFunction) (string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return "", err
	}
	gene, ok := r.res.Genes.Resolve(values[0])
	if !ok {
		return "", invalid("unknown gene %q", values[0])
	}
	return gene, nil
}

// OneDoidTerm returns fn's DOID parameter after checking it exists
func (r FunctionInputResolver) OneDoidTerm(fn EligibilityFunction) (string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return "", err
	}
	if !r.res.Doid.Exists(values[0]) {
		return "", invalid("unknown DOID %q", values[0])
	}
	return values[0], nil
}

// OneIcdTitle resolves fn's ICD title parameter to its code
func (r FunctionInputResolver) OneIcdTitle(fn EligibilityFunction) (IcdTitle, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return IcdTitle{}, err
	}
	node, ok := r.res.Icd.ResolveTitle(values[0])
	if !ok {
		return IcdTitle{}, invalid("unknown ICD title %q", values[0])
	}
	return IcdTitle{Code: node.Code, Title: node.Title}, nil
}

// OneMedicationCategory returns the canonical medication category of fn
func (r FunctionInputResolver) OneMedicationCategory(fn EligibilityFunction) (string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return "", err
	}
	category, ok := r.res.MedicationCategories.Resolve(values[0])
	if !ok {
		return "", invalid("unknown medication category %q", values[0])
	}
	return category, nil
}

// ManyDrugs returns the canonical drug names of fn's ';'-separated parameter
func (r FunctionInputResolver) ManyDrugs(fn EligibilityFunction) ([]string, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return nil, err
	}
	names := splitList(values[0])
	if len(names) == 0 {
		return nil, invalid("empty drug list")
	}
	drugs := make([]string, 0, len(names))
	for _, name := range names {
		drug, ok := r.res.Drugs.Resolve(name)
		if !ok {
			return nil, invalid("unknown drug %q", name)
		}
		drugs = append(drugs, drug)
	}
	return drugs, nil
}

// OneExpression compiles fn's clinical expression parameter
func (r FunctionInputResolver) OneExpression(fn EligibilityFunction) (cel.Program, error) {
	values, err := literals(fn, 1)
	if err != nil {
		return nil, err
	}
	prog, err := r.res.Expressions.Compile(values[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return prog, nil
}
