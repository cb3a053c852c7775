/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package models

// Bank is one branch of a bank that merchants can be paid out to
type Bank struct {
	Code       string
	Name       string
	BranchCode string
	BranchName string
}

// Banks is the payout reference table. A bank code can be shared by more
// than one bank name, so lookups go by name first.
var Banks = []Bank{
	{Code: "7171", Name: "DBS Bank Ltd", BranchCode: "001", BranchName: "Main Branch"},
	{Code: "7339", Name: "OCBC Bank", BranchCode: "501", BranchName: "Tampines Branch"},
	{Code: "7761", Name: "UOB Bank", BranchCode: "001", BranchName: "Raffles Place"},
	{Code: "7091", Name: "Maybank Singapore", BranchCode: "001", BranchName: "Main Branch"},
	{Code: "7302", Name: "Standard Chartered Bank", BranchCode: "001", BranchName: "Main Branch"},
	{Code: "7375", Name: "HSBC Singapore", BranchCode: "146", BranchName: "Orchard Branch"},
	{Code: "7171", Name: "POSB Bank", BranchCode: "081", BranchName: "Toa Payoh Branch"},
	{Code: "9465", Name: "Citibank Singapore", BranchCode: "001", BranchName: "Main Branch"},
	{Code: "7083", Name: "RHB Bank Berhad", BranchCode: "001", BranchName: "Main Branch"},
	{Code: "7012", Name: "Bank of China Singapore", BranchCode: "001", BranchName: "Main Branch"},
}
