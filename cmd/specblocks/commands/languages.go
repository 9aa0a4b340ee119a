package commands

import (
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/render"
)

// LanguagesCmd implements the 'languages' command.
type LanguagesCmd struct {
	TemplateDir string `name:"template-dir" help:"Template override directory" type:"path"`
}

func (l *LanguagesCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if l.TemplateDir != "" {
		cfg.Render.TemplateDir = l.TemplateDir
	}
	return listLanguages(os.Stdout, cfg.Render.TemplateDir)
}

func listLanguages(w io.Writer, templateDir string) error {
	reg, err := render.NewRegistry(templateDir)
	if err != nil {
		return err
	}
	for _, lang := range reg.Languages() {
		if _, err := fmt.Fprintln(w, lang); err != nil {
			return err
		}
	}
	return nil
}
