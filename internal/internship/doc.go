// Package internship defines the listing model, the stage error taxonomy and the
// small interfaces shared by the fetch, extract and persist subsystems.
package internship
