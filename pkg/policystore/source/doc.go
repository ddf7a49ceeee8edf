// Package source loads policies from YAML files into a policy store and
// optionally watches the file for changes, reloading on edit. Files are
// the GitOps-friendly way to ship a baseline policy set; the HTTP API
// can still add or change policies at runtime.
package source
