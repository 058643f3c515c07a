package app

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
)

type fakeOptions struct {
	addr     string
	valid    bool
	flagsSet bool
}

func (o *fakeOptions) Validate() []error {
	if !o.valid {
		return []error{errors.New("fake: invalid")}
	}
	return nil
}

func (o *fakeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.addr, "fake.addr", "default", "fake address")
	o.flagsSet = true
}

func TestRunFuncExecutesWhenOptionsValid(t *testing.T) {
	opts := &fakeOptions{valid: true}
	ran := false

	a := NewApp("fakeapp", "a fake app",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	a.Command().SetArgs([]string{})
	if err := a.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ran {
		t.Error("RunFunc was not invoked")
	}
	if !opts.flagsSet {
		t.Error("AddFlags was never called")
	}
}

func TestExecuteFailsValidation(t *testing.T) {
	opts := &fakeOptions{valid: false}
	ran := false

	a := NewApp("fakeapp", "a fake app",
		WithOptions(opts),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)

	a.Command().SetArgs([]string{})
	if err := a.Execute(); err == nil {
		t.Fatal("expected Execute to fail validation")
	}
	if ran {
		t.Error("RunFunc must not run when validation fails")
	}
}
