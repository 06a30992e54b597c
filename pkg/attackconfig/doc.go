// Package attackconfig provides the configuration shared by every detector.
//
// Detector packages embed [Base] to inherit the scanner-scoped client, the
// per-request timeout, the logger and the finding callback:
//
//	type Config struct {
//	    attackconfig.Base
//	    AdminPaths []string
//	}
package attackconfig
