// Command httpserver serves the model registry API.
//
// Records are kept in memory; artifacts go to the storage backends named by
// --storage. Repeating the flag replicates uploads to every backend:
//
//	httpserver --listen-addr 0.0.0.0:8080 \
//	    --storage file:///app/model_storage \
//	    --storage "s3://ml-platform-models/?region=us-east-1" \
//	    --cascade-delete --cors
//
// All flags can also be set in an HCL file passed with --config; flags given
// on the command line win over the file.
package main
