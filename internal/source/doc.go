// Package source reads the three raw inputs: the vaccination statistics
// workbook, the census population table, and the DineSafe inspection
// registry. Readers return raw rows; interpretation happens in merge.
package source
