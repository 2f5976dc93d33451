package app

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// DraftInput holds the editable fields of a new draft.
type DraftInput struct {
	Recipients []string
	Subject    string
	Content    string
}

// Prompter asks the user for input the command line did not carry.
type Prompter interface {
	Password(address string) (string, error)
	Draft(sender string, in *DraftInput) error
}

// huhPrompter prompts with huh forms on the terminal.
type huhPrompter struct{}

func (huhPrompter) Password(address string) (string, error) {
	var password string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password for " + address).
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}
	return password, nil
}

func (huhPrompter) Draft(sender string, in *DraftInput) error {
	to := strings.Join(in.Recipients, ", ")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("To").
				Description("From " + sender + ". Separate addresses with commas.").
				Value(&to),
			huh.NewInput().
				Title("Subject").
				Value(&in.Subject),
			huh.NewText().
				Title("Message").
				Lines(10).
				Value(&in.Content),
		),
	).Run()
	if err != nil {
		return err
	}
	in.Recipients = strings.Split(to, ",")
	return nil
}
