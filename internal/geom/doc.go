// Package geom owns the rigid-transform algebra shared by every stage of the
// converter.
//
// Responsibilities: 4×4 homogeneous poses (composition, inversion,
// application to point sets), Euler-angle pose construction for per-pixel
// vehicle poses, spherical-to-Cartesian projection, and oriented 3D box
// containment.
// Key types: Transform, Box3D.
//
// Dependency rule: geom depends on nothing else in this module. All functions
// are pure; a Transform is an immutable value.
package geom
