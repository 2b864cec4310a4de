// Package extract reduces a frame of RGBA pixels to one representative colour.
//
// Every visited pixel passes the same preprocessing regardless of mode: it must lie inside
// the optional Region, it must not be pure black, and it must not be near-gray. Surviving
// pixels are weighted by a spatial bias computed from their position in the whole grid
// and then accumulated by one of three analysis modes:
//
//   - PureAverage: weighted mean per channel.
//   - MostFrequentColor: weighted histogram per channel, each channel picked independently.
//   - MostFrequentWholeColor: weighted count per packed 32-bit colour.
//
// Grids are walked in row-major order, which pins the tie-break of MostFrequentWholeColor
// to the first colour that reached the winning weight.
//
// When no pixel survives, Extract returns neutral black and a zero Result.Weight.
package extract
