// Package domain models the parcel burn-severity analysis: rasters, parcel
// areas of interest, the slope x burn-severity classification and the per-parcel
// acreage record.
//
// # Data Sources
//
// Elevation comes from the USGS 3DEP ImageServer as float32 meters. Burn
// severity is a single-band raster of basal-area (BA) loss on a 0-100 scale.
// Aerial imagery is NAIP RGB(N) at roughly 0.6 m. All three are brought onto the
// analysis CRS (UTM zone 10N by default) before classification.
//
// # Grid Conventions
//
// Transforms use the GDAL geotransform order:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
//
// Only north-up grids are supported (t[2] == t[4] == 0, t[5] < 0). Pixel
// membership in an area of interest is decided at the pixel centre, matching
// GDAL's default (not all-touched) rasterization.
//
// Missing data is carried as NaN once a raster has been masked; the file-level
// nodata sentinel is only used for IO.
//
// # Classification
//
// Slope tiers (degrees) and severity tiers (BA loss percent) use strict
// comparisons on both sides:
//
//	Slope:    s > 30 | 15 < s < 30 | s < 15
//	Severity: b < 25 | 25 < b < 50 | 50 < b < 75 | b > 75
//
// A finite value sitting exactly on a threshold belongs to no tier and is
// counted as unbinned. A non-finite slope pixel is background (outside the
// parcel). Thresholds are configurable through [Tiers].
//
// # Acreage
//
// One pixel covers resX*resY square meters; 4046.86 square meters make an acre.
// Each bin is rounded to two decimals exactly once, in [Aggregate].
package domain
