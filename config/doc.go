// Package config defines configuration structures for the bulkdl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (BULKDL_ prefix)
//   - YAML configuration file
//
// # YAML layout
//
//	cookie_jar: ~/.bulk_download_cookiejar.txt
//	dest_dir: ./granules
//	validate_timeout: 10s
//	read_timeout: 30s
//	chunk_size: 8KB
//	progress: true
//	targets:
//	  - url: https://datapool.asf.alaska.edu/SLC/SA/granule.zip
//	    md5: 0cc175b9c0f1b6a831c399e269772661
package config
