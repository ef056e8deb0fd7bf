/*
	Package catvol provides types, constants, and functions that have no other dependencies
	and can be used by all packages within catvol.  This includes the logging facade, the
	error taxonomy shared by the tile, volume and node services, pixel geometry, label
	planes and masks, image encoding helpers, and the closed set of drawing types.
*/
package catvol
