package main

import (
	"fmt"

	tastack "github.com/lex00/tastack-go"
	"github.com/lex00/tastack-go/internal/asset"
	"github.com/lex00/tastack-go/internal/config"
	"github.com/lex00/tastack-go/internal/stack"
)

// synthesis is the result of one load, fingerprint and assemble pass.
type synthesis struct {
	config   config.Config
	image    asset.ImageSource
	stack    *stack.Stack
	template *tastack.Template
}

// imageAsset returns the fingerprinted image, or false when an explicit URI is used.
func (s *synthesis) imageAsset() (asset.ImageAsset, bool) {
	a, ok := s.image.(asset.ImageAsset)
	return a, ok
}

// synthesize resolves configuration and produces the stack template.
func synthesize(opts *globalOptions) (*synthesis, error) {
	cfg, err := config.Load(config.Options{
		EnvFile:        opts.envFile,
		RequireEnvFile: opts.requireEnvFile,
		StackName:      opts.stackName,
		ImageDir:       opts.imageDir,
		ImageURI:       opts.imageURI,
	})
	if err != nil {
		return nil, err
	}

	var image asset.ImageSource
	if cfg.ImageURI != "" {
		image = asset.ExternalImage(cfg.ImageURI)
	} else {
		fingerprint, err := asset.Fingerprint(cfg.ImageDir)
		if err != nil {
			return nil, fmt.Errorf("fingerprinting image asset: %w", err)
		}
		image = fingerprint
	}

	s, err := stack.Assemble(cfg, image)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.Template()
	if err != nil {
		return nil, fmt.Errorf("synthesizing template: %w", err)
	}

	return &synthesis{config: cfg, image: image, stack: s, template: tmpl}, nil
}
