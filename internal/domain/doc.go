// Package domain models EPA eGRID power-plant records and the rules for
// normalizing the yearly plant sheets into one canonical shape.
//
// # Data Source
//
// eGRID (Emissions & Generation Resource Integrated Database) is published by
// the EPA as one workbook per data year, available at
// https://www.epa.gov/egrid/historical-egrid-data. Each workbook carries a
// plant-level sheet with one row per generating plant. Some years were never
// published (2006, 2008, 2011, 2013, 2015, 2017).
//
// # Workbook Layout Conventions
//
// Sheet names:
//
//	2004:        "EGRDPLNT04"
//	other years: "PLNT<yy>", e.g. "PLNT19" for 2019
//
// Header rows (0-based row offset of the column-name row):
//
//	≤ 2012: 4   (four rows of long-form descriptions precede the codes)
//	> 2012: 1   (one description row)
//
// Year column:
//
//	Workbooks up to the legacy boundary have no YEAR column. Those sheets
//	start with a per-year sequence column, "SEQPLT<yy>", and the synthesized
//	YEAR column is placed directly after it so the canonical column order
//	matches later workbooks ("SEQPLT19", "YEAR", "PSTATABB", ...).
//
// # Canonical Columns
//
//	YEAR      data year
//	PSTATABB  plant state postal code
//	PNAME     plant name
//	CNTYNAME  county name
//	LAT, LON  plant coordinates, WGS84 decimal degrees
//	PLPRMFL   plant primary fuel code (NG, COL, SUN, WND, NUC, ...)
//	PLNGENAN  plant annual net generation, MWh
//	PLGENATN  plant annual nonrenewable generation, MWh
//	PLGENATR  plant annual renewable generation, MWh
//
// Older workbooks may lack some of the optional columns; those values are
// NULL in the canonical records rather than zero.
package domain
