// Package tabular reads CSV files and spreadsheet workbooks into raw cell
// grids. Type inference and relation mapping happen in the domain.
package tabular
