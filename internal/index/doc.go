// Package index turns the rendered fragment set into the discovery layer:
// llms.txt, manifest.json, blocks/index.json, sitemap.xml and index.html.
//
// Every artifact is a pure function of the sorted entry list and the
// constant site information, so regenerating one is idempotent.
package index
