// Package credentials stores per-(region, workspace) API tokens in a single
// JSON file and reloads it when another process edits it.
//
// The file layout is:
//
//	{
//	  "ap1": {
//	    "prod": {"token": "...", "workspace": "prod", "region": "ap1"}
//	  }
//	}
//
// Every mutation rewrites the whole file through a temporary file and an
// atomic rename.
package credentials
