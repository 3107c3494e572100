// Package textclass prepares labeled text datasets for a managed
// classification service, drives the asynchronous train lifecycle and
// normalizes the resulting predictions.
//
// The pipeline is Formatter -> Assembler -> Trainer -> Predictor. All
// backend collaborators are injected as interfaces; adapters for Google
// Cloud AutoML and GCS live under adapters/.
package textclass
