// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package manifest renders the templated Kubernetes manifests installed by the operator
package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

const (
	TemplateExtension = ".yaml.tmpl"
	DefaultBootstrap  = "bootstrap" + TemplateExtension

	kindFilePrefix = "install-"
)

// Source is a directory of manifest templates.
type Source struct {
	fsys      fs.FS
	bootstrap string
}

func NewSource(fsys fs.FS, bootstrap string) *Source {
	if bootstrap == "" {
		bootstrap = DefaultBootstrap
	}
	return &Source{
		fsys:      fsys,
		bootstrap: bootstrap,
	}
}

// InstallFiles lists the templates applied on install in lexical order.
// Per-kind instance templates are not part of it.
func (s *Source) InstallFiles() ([]string, error) {
	files, err := fs.Glob(s.fsys, "*"+TemplateExtension)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(files))
	for _, file := range files {
		if strings.HasPrefix(file, kindFilePrefix) {
			continue
		}
		result = append(result, file)
	}
	return result, nil
}

func (s *Source) BootstrapFile() string {
	return s.bootstrap
}

// KindFile returns the instance template for a custom resource kind and
// whether it exists.
func (s *Source) KindFile(kind string) (string, bool, error) {
	file := kindFilePrefix + kind + TemplateExtension
	_, err := fs.Stat(s.fsys, file)
	switch {
	case err == nil:
		return file, true, nil
	case errors.Is(err, fs.ErrNotExist):
		return file, false, nil
	default:
		return file, false, err
	}
}

// Render expands the template and decodes every resulting document in order.
func (s *Source) Render(file string, vars Context) ([]*Resource, error) {
	raw, err := fs.ReadFile(s.fsys, file)
	if err != nil {
		return nil, fmt.Errorf("unable to read template %s: %w", file, err)
	}

	tmpl, err := template.New(path.Base(file)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("unable to parse template %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars.Values()); err != nil {
		return nil, fmt.Errorf("unable to render template %s: %w", file, err)
	}

	return decode(file, buf.Bytes())
}

func decode(file string, content []byte) ([]*Resource, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(content)))

	var resources []*Resource
	for document := 0; ; document++ {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return resources, nil
		}
		if err != nil {
			return nil, &ManifestError{File: file, Document: document, Reason: err.Error()}
		}

		jsonDoc, err := yaml.YAMLToJSON(doc)
		if err != nil {
			return nil, &ManifestError{File: file, Document: document, Reason: err.Error()}
		}

		var obj map[string]any
		if err := utiljson.Unmarshal(jsonDoc, &obj); err != nil {
			return nil, &ManifestError{File: file, Document: document, Reason: err.Error()}
		}
		if len(obj) == 0 {
			continue
		}

		resource, err := newResource(file, document, obj)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
}
