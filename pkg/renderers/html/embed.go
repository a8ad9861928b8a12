package html

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.tpl
var embeddedTemplates embed.FS

//go:embed assets/*
var embeddedAssets embed.FS

const (
	StylesheetName = "formflow.css"
	ScriptName     = "formflow.js"
)

// TemplatesFS exposes the embedded templates, rooted at the template names.
func TemplatesFS() fs.FS {
	return mustSub(embeddedTemplates, "templates")
}

// AssetsFS exposes the stylesheet and script so servers can mount them.
func AssetsFS() fs.FS {
	return mustSub(embeddedAssets, "assets")
}

func mustSub(files fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
