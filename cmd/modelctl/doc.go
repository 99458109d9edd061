// Command modelctl is the command line client of the registry and serving APIs.
//
//	modelctl create iris 1.0
//	modelctl upload <model-id> ./iris.model
//	modelctl load <model-id>
//	modelctl predict 5.1 3.5 1.4 0.2
package main
