// Package file keeps quarry's settings and prompt templates under the config
// directory (~/.quarry by default). Settings live in config.toml; prompts are
// one .tmpl file per name so they can be edited by hand.
package file
