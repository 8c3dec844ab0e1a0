package fixture

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite is a named list of checks loaded from YAML:
//
//	name: records
//	concurrency: 4
//	timeout: 2s
//	checks:
//	  - name: partial match
//	    subject: {a: 1, b: 2}
//	    assertion: to satisfy
//	    args: [{a: 1}]
type Suite struct {
	Name        string
	Source      string
	Concurrency int
	Timeout     time.Duration
	Checks      []Check
}

// Check is one assertion with decoded values.
type Check struct {
	Name      string
	Subject   any
	Assertion string
	Args      []any
	Skip      bool
}

type rawSuite struct {
	Name        string     `yaml:"name"`
	Concurrency int        `yaml:"concurrency"`
	Timeout     string     `yaml:"timeout"`
	Checks      []rawCheck `yaml:"checks"`
}

type rawCheck struct {
	Name      string      `yaml:"name"`
	Subject   yaml.Node   `yaml:"subject"`
	Assertion string      `yaml:"assertion"`
	Args      []yaml.Node `yaml:"args"`
	Skip      bool        `yaml:"skip"`
}

// ParseSuite decodes a suite document.
func ParseSuite(data []byte) (*Suite, error) {
	var raw rawSuite
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}

	s := &Suite{Name: raw.Name, Concurrency: raw.Concurrency}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid suite timeout %q: %w", raw.Timeout, err)
		}
		s.Timeout = d
	}

	for k, rc := range raw.Checks {
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("check %d", k+1)
		}
		if rc.Assertion == "" {
			return nil, fmt.Errorf("%s: missing assertion", name)
		}
		c := Check{Name: name, Assertion: rc.Assertion, Skip: rc.Skip}

		if rc.Subject.Kind == 0 {
			return nil, fmt.Errorf("%s: missing subject", name)
		}
		subject, err := NodeValue(&rc.Subject)
		if err != nil {
			return nil, fmt.Errorf("%s: subject: %w", name, err)
		}
		c.Subject = subject

		for a := range rc.Args {
			v, err := NodeValue(&rc.Args[a])
			if err != nil {
				return nil, fmt.Errorf("%s: arg %d: %w", name, a+1, err)
			}
			c.Args = append(c.Args, v)
		}
		s.Checks = append(s.Checks, c)
	}
	return s, nil
}

// LoadSuite reads and decodes the suite at path.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	s, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Source = path
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}
