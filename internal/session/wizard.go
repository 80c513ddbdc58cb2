package session

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/conneroisu/mpwizard/internal/fragments"
)

const doneChoice = "done"

// Wizard walks an operator through building a session on a terminal.
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
	lib    *fragments.Library
}

// NewWizard creates a wizard reading answers from in and writing prompts to
// out.
func NewWizard(lib *fragments.Library, in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
		lib:    lib,
	}
}

// Run executes the interactive walk-through and returns the built session.
func (w *Wizard) Run() (*Session, error) {
	fmt.Fprintln(w.out, "Management Pack Wizard")
	fmt.Fprintln(w.out, "======================")
	fmt.Fprintln(w.out)

	s := New(w.lib)

	if err := w.configureBasicInfo(s); err != nil {
		return nil, fmt.Errorf("basic information failed: %w", err)
	}

	if err := w.configureDiscovery(s); err != nil {
		return nil, fmt.Errorf("discovery configuration failed: %w", err)
	}

	for _, cat := range []fragments.Category{fragments.CategoryMonitors, fragments.CategoryRules} {
		if err := w.configureCategory(s, cat); err != nil {
			return nil, fmt.Errorf("%s configuration failed: %w", cat, err)
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration completed.")

	return s, nil
}

func (w *Wizard) configureBasicInfo(s *Session) error {
	fmt.Fprintln(w.out, "Basic Information")
	fmt.Fprintln(w.out, "-----------------")

	var b BasicInfo
	for b.CompanyID == "" {
		b.CompanyID = w.askString("Company ID", "")
		b = b.Normalize()
		if b.CompanyID == "" && w.exhausted() {
			return fmt.Errorf("company id is required")
		}
	}
	for b.AppName == "" {
		b.AppName = w.askString("Application name (letters and digits)", "")
		b = b.Normalize()
		if b.AppName == "" && w.exhausted() {
			return fmt.Errorf("application name is required")
		}
	}
	b.Version = w.askString("Version", "1.0.0.0")
	b.Description = w.askString("Description", "")

	s.SetBasicInfo(b)
	fmt.Fprintln(w.out)

	return nil
}

func (w *Wizard) configureDiscovery(s *Session) error {
	fmt.Fprintln(w.out, "Discovery")
	fmt.Fprintln(w.out, "---------")

	choices := keys(w.lib.ByCategory(fragments.CategoryDiscovery))
	choices = append(choices, SkipDiscovery)

	choice := w.askChoice("Discovery method", choices, SkipDiscovery)
	if choice == SkipDiscovery {
		target := w.askString("Target class", "Windows!Microsoft.Windows.Server.OperatingSystem")
		s.SkipDiscovery(target)
		fmt.Fprintln(w.out)

		return nil
	}

	if err := s.SelectDiscovery(choice); err != nil {
		return err
	}
	def, _ := w.lib.Get(choice)
	if err := w.askFields(s, def, choice); err != nil {
		return err
	}
	fmt.Fprintln(w.out)

	return nil
}

func (w *Wizard) configureCategory(s *Session, cat fragments.Category) error {
	title := strings.ToUpper(string(cat[:1])) + string(cat[1:])
	fmt.Fprintln(w.out, title)
	fmt.Fprintln(w.out, strings.Repeat("-", len(title)))

	choices := keys(w.lib.ByCategory(cat))
	if len(choices) == 0 {
		return nil
	}
	choices = append(choices, doneChoice)

	for {
		choice := w.askChoice("Add "+string(cat), choices, doneChoice)
		if choice == doneChoice {
			break
		}

		inst, err := s.AddInstance(choice)
		if err != nil {
			return err
		}
		fmt.Fprintf(w.out, "Configuring %s\n", inst.InstanceID)

		def, _ := w.lib.Get(choice)
		if err := w.askFields(s, def, inst.InstanceID); err != nil {
			return err
		}
	}
	fmt.Fprintln(w.out)

	return nil
}

func (w *Wizard) askFields(s *Session, def *fragments.Definition, instanceID string) error {
	for _, f := range def.Fields {
		var value string
		switch f.Kind {
		case fragments.KindSelect:
			value = w.askChoice(f.Label, f.Options, f.Default)
		case fragments.KindNumber:
			value = w.askNumber(f.Label, f.Default)
		default:
			value = w.askString(f.Label, f.Default)
		}

		// Accepted defaults stay out of the record; they are applied when
		// the pack is generated.
		if value == "" || value == f.Default {
			continue
		}
		err := s.Set(FieldValue{
			FragmentKey: def.Key,
			InstanceID:  instanceID,
			FieldID:     f.ID,
			Value:       value,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (w *Wizard) askString(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}

	input, _ := w.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}

	return input
}

func (w *Wizard) askNumber(prompt, defaultValue string) string {
	for {
		value := w.askString(prompt, defaultValue)
		if value == "" {
			return value
		}
		if _, err := strconv.Atoi(value); err == nil {
			return value
		}
		fmt.Fprintln(w.out, "Invalid number.")

		if w.exhausted() {
			return defaultValue
		}
	}
}

func (w *Wizard) askChoice(prompt string, choices []string, defaultValue string) string {
	for {
		fmt.Fprintf(w.out, "%s [%s] (options: %s): ", prompt, defaultValue, strings.Join(choices, ", "))

		input, err := w.reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			return defaultValue
		}

		for _, choice := range choices {
			if strings.EqualFold(input, choice) {
				return choice
			}
		}

		fmt.Fprintf(w.out, "Invalid choice. Please select from: %s\n", strings.Join(choices, ", "))
		if err != nil {
			return defaultValue
		}
	}
}

func (w *Wizard) exhausted() bool {
	_, err := w.reader.Peek(1)

	return err != nil
}

func keys(defs []*fragments.Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Key)
	}

	return out
}
