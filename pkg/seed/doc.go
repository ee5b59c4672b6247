// Package seed bootstraps a store from a YAML file.
//
// A seed file names the single main admin and the main catalog entries:
//
//	mainAdmin:
//	  email: owner@sorum.example
//	  name: Owner
//	cars:
//	  - title: Sorum GT
//	    price: 42000
//	    brand: Sorum
//
// The main admin is upserted with the admin role and the mainAdmin flag.
// Cars are stored with main=true, so the API refuses to delete them.
// Re-running a seed is safe: existing titles are skipped.
package seed
